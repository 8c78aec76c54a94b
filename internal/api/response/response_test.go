package response_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gpstunnel/gpstunnel/internal/api/middleware"
	"github.com/gpstunnel/gpstunnel/internal/api/models"
	"github.com/gpstunnel/gpstunnel/internal/api/response"
	"github.com/gpstunnel/gpstunnel/internal/featureflags"
	"github.com/gpstunnel/gpstunnel/internal/maps"
	"github.com/gpstunnel/gpstunnel/internal/tour"
)

// requestWithContext returns a request whose context carries a request ID.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	return processedReq, httptest.NewRecorder()
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var problem models.Problem
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode problem: %v", err)
	}
	return problem
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/tour-routes")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/tour-routes", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Header().Get("X-Request-Id") != "" {
		t.Error("expected no X-Request-Id header without middleware")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestCreated_SetsLocation(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/tour-sessions")

	response.Created(rec, req, "/v1/tour-sessions/s1", map[string]string{"id": "s1"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/tour-sessions/s1" {
		t.Errorf("expected Location header, got %q", loc)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
}

func TestNoContent_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/admin/feature-flags/invalidate")

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
}

func TestTooManyRequests_IncludesRateLimitHeaders(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/search/places")

	response.TooManyRequestsWithInfo(rec, req, "slow down", &response.RateLimitInfo{
		Limit:      30,
		Remaining:  0,
		ResetAt:    1700000000,
		RetryAfter: 42,
	})

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec.Code)
	}
	for header, want := range map[string]string{
		"X-RateLimit-Limit":     "30",
		"X-RateLimit-Remaining": "0",
		"X-RateLimit-Reset":     "1700000000",
		"Retry-After":           "42",
	} {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("expected %s %q, got %q", header, want, got)
		}
	}
}

func TestBadRequest_IncludesTraceIDAndInstance(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPut, "/v1/tour-sessions/s1/location")

	response.BadRequest(rec, req, "invalid", []models.FieldError{{Field: "latitude", Message: "out of range"}})

	problem := decodeProblem(t, rec)
	if problem.TraceID == "" || problem.TraceID != rec.Header().Get("X-Request-Id") {
		t.Errorf("expected trace ID to match request ID, got %q", problem.TraceID)
	}
	if problem.Instance != "/v1/tour-sessions/s1/location" {
		t.Errorf("expected instance to be the request path, got %q", problem.Instance)
	}
	if len(problem.Errors) != 1 || problem.Errors[0].Field != "latitude" {
		t.Errorf("unexpected field errors: %+v", problem.Errors)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "valid", body: `{"routeId":"r1"}`},
		{name: "empty", body: ``, wantErr: "empty"},
		{name: "malformed", body: `{"routeId":`, wantErr: "invalid JSON"},
		{name: "trailing object", body: `{"routeId":"r1"}{"routeId":"r2"}`, wantErr: "single JSON object"},
		{name: "too large", body: `{"routeId":"` + strings.Repeat("x", response.MaxBodyBytes) + `"}`, wantErr: "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/tour-sessions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			var dst struct {
				RouteID string `json:"routeId"`
			}
			err := response.DecodeJSON(rec, req, &dst)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.RouteID != "r1" {
					t.Errorf("expected routeId r1, got %q", dst.RouteID)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{
			name:       "validation",
			err:        &tour.ValidationError{Errors: []tour.FieldError{{Field: "latitude", Message: "must be between -90 and 90"}}},
			wantStatus: http.StatusBadRequest,
			wantType:   models.ProblemTypeValidation,
		},
		{name: "missing route", err: tour.ErrRouteNotFound, wantStatus: http.StatusNotFound, wantType: models.ProblemTypeNotFound},
		{name: "missing session", err: fmt.Errorf("load: %w", tour.ErrSessionNotFound), wantStatus: http.StatusNotFound, wantType: models.ProblemTypeNotFound},
		{name: "no maps results", err: maps.ErrNoResults, wantStatus: http.StatusNotFound, wantType: models.ProblemTypeNotFound},
		{name: "maps input", err: &maps.Error{Message: "query is required", Err: maps.ErrInvalidInput}, wantStatus: http.StatusBadRequest, wantType: models.ProblemTypeValidation},
		{name: "flag input", err: featureflags.ErrInvalidFlag, wantStatus: http.StatusBadRequest, wantType: models.ProblemTypeValidation},
		{name: "version conflict", err: tour.ErrVersionConflict, wantStatus: http.StatusConflict, wantType: models.ProblemTypeConflict},
		{name: "upstream", err: maps.ErrUpstreamUnavailable, wantStatus: http.StatusBadGateway, wantType: models.ProblemTypeUpstream},
		{name: "provider quota", err: maps.ErrRateLimitExceeded, wantStatus: http.StatusBadGateway, wantType: models.ProblemTypeUpstream},
		{name: "disabled", err: maps.ErrFeatureDisabled, wantStatus: http.StatusServiceUnavailable, wantType: models.ProblemTypeUnavailable},
		{name: "unknown", err: errors.New("connection refused"), wantStatus: http.StatusInternalServerError, wantType: models.ProblemTypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/v1/tour-sessions/s1")

			response.FromError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			problem := decodeProblem(t, rec)
			if problem.Type != tt.wantType {
				t.Errorf("expected type %q, got %q", tt.wantType, problem.Type)
			}
		})
	}
}

func TestFromError_HidesInternalDetail(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/tour-routes")

	response.FromError(rec, req, errors.New("pq: password authentication failed"))

	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("expected internal error detail to be hidden, got %s", rec.Body.String())
	}
}
