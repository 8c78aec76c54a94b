package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, sent as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Problem type URIs.
const (
	ProblemTypeValidation       = "https://gpstunnel.app/problems/validation-error"
	ProblemTypeUnauthorized     = "https://gpstunnel.app/problems/unauthorized"
	ProblemTypeForbidden        = "https://gpstunnel.app/problems/forbidden"
	ProblemTypeNotFound         = "https://gpstunnel.app/problems/not-found"
	ProblemTypeConflict         = "https://gpstunnel.app/problems/conflict"
	ProblemTypeUnsupportedMedia = "https://gpstunnel.app/problems/unsupported-media-type"
	ProblemTypeTooManyRequests  = "https://gpstunnel.app/problems/too-many-requests"
	ProblemTypeInternal         = "https://gpstunnel.app/problems/internal-error"
	ProblemTypeUpstream         = "https://gpstunnel.app/problems/upstream-unavailable"
	ProblemTypeUnavailable      = "https://gpstunnel.app/problems/service-unavailable"
	ProblemTypeTLSRequired      = "https://gpstunnel.app/problems/tls-required"
)

// NewProblem creates a new Problem with the given parameters.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// WithDetail adds a detail message to the Problem.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance adds the request instance URI to the Problem.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors adds field errors to the Problem.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Write writes the Problem as JSON to the ResponseWriter.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p) //nolint:errcheck // client went away
}

func newProblem(problemType, title string, status int, traceID, detail string) *Problem {
	p := NewProblem(problemType, title, status, traceID)
	p.Detail = detail
	return p
}

// NewBadRequest creates a 400 problem with field errors.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := newProblem(ProblemTypeValidation, "Validation error", http.StatusBadRequest, traceID, detail)
	p.Errors = errors
	return p
}

// NewUnauthorized creates a 401 problem.
func NewUnauthorized(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUnauthorized, "Unauthorized", http.StatusUnauthorized, traceID, detail)
}

// NewForbidden creates a 403 problem.
func NewForbidden(traceID, detail string) *Problem {
	return newProblem(ProblemTypeForbidden, "Forbidden", http.StatusForbidden, traceID, detail)
}

// NewNotFound creates a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return newProblem(ProblemTypeNotFound, "Not found", http.StatusNotFound, traceID, detail)
}

// NewConflict creates a 409 problem.
func NewConflict(traceID, detail string) *Problem {
	return newProblem(ProblemTypeConflict, "Conflict", http.StatusConflict, traceID, detail)
}

// NewUnsupportedMediaType creates a 415 problem.
func NewUnsupportedMediaType(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUnsupportedMedia, "Unsupported media type", http.StatusUnsupportedMediaType, traceID, detail)
}

// NewTooManyRequests creates a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newProblem(ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests, traceID, detail)
}

// NewInternalError creates a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return newProblem(ProblemTypeInternal, "Internal server error", http.StatusInternalServerError, traceID, detail)
}

// NewBadGateway creates a 502 problem for map provider failures.
func NewBadGateway(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUpstream, "Upstream unavailable", http.StatusBadGateway, traceID, detail)
}

// NewServiceUnavailable creates a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newProblem(ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable, traceID, detail)
}
