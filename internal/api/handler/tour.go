package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gpstunnel/gpstunnel/internal/api/models"
	"github.com/gpstunnel/gpstunnel/internal/api/response"
	"github.com/gpstunnel/gpstunnel/internal/tour"
)

// TourHandler serves the public catalog and session endpoints.
type TourHandler struct {
	service *tour.Service
}

// NewTourHandler creates a new TourHandler.
func NewTourHandler(service *tour.Service) *TourHandler {
	return &TourHandler{service: service}
}

// ListRoutes handles GET /v1/tour-routes.
func (h *TourHandler) ListRoutes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.service.ListActiveRoutes(r.Context())
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	list := models.TourRouteList{Items: make([]models.TourRoute, 0, len(routes))}
	for _, route := range routes {
		list.Items = append(list.Items, toTourRoute(route))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetRoute handles GET /v1/tour-routes/{routeId}.
func (h *TourHandler) GetRoute(w http.ResponseWriter, r *http.Request) {
	route, err := h.service.GetRoute(r.Context(), chi.URLParam(r, "routeId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toTourRoute(route))
}

// GetRoutePoints handles GET /v1/tour-routes/{routeId}/points.
// Points are returned in progression order.
func (h *TourHandler) GetRoutePoints(w http.ResponseWriter, r *http.Request) {
	route, seq, err := h.service.GetWaypoints(r.Context(), chi.URLParam(r, "routeId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	list := models.TourPointList{RouteID: route.ID, Items: make([]models.TourPoint, 0, len(seq))}
	for i := range seq {
		list.Items = append(list.Items, toTourPoint(&seq[i]))
	}
	response.JSON(w, r, http.StatusOK, list)
}

// GetRouteGeoJSON handles GET /v1/tour-routes/{routeId}/geojson.
func (h *TourHandler) GetRouteGeoJSON(w http.ResponseWriter, r *http.Request) {
	route, seq, err := h.service.GetWaypoints(r.Context(), chi.URLParam(r, "routeId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	lang := r.URL.Query().Get("language")
	if lang == "" {
		lang = h.service.DefaultLanguage()
	}

	fc := tour.RouteGeoJSON(route, seq, lang, h.service.DefaultLanguage())
	data, err := fc.MarshalJSON()
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// CreateSession handles POST /v1/tour-sessions.
func (h *TourHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.TourSessionCreateRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	session, err := h.service.CreateSession(r.Context(), req.RouteID, req.UserID, req.Language)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	status, err := h.service.GetSession(r.Context(), session.ID)
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.Created(w, r, "/v1/tour-sessions/"+session.ID, toTourSession(status))
}

// GetSession handles GET /v1/tour-sessions/{sessionId}.
func (h *TourHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		response.FromError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toTourSession(status))
}

// ReportLocation handles PUT /v1/tour-sessions/{sessionId}/location.
func (h *TourHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	var req models.UserLocation
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if errs := missingCoordinates(
		coordinateField{"latitude", req.Latitude},
		coordinateField{"longitude", req.Longitude},
	); len(errs) > 0 {
		response.BadRequest(w, r, "location requires latitude and longitude", errs)
		return
	}

	loc := tour.Location{
		Position: tour.Position{Lat: *req.Latitude, Lon: *req.Longitude},
		Accuracy: req.Accuracy,
	}
	if req.Timestamp != nil {
		loc.Timestamp = req.Timestamp.Time()
	}

	result, err := h.service.ReportLocation(r.Context(), chi.URLParam(r, "sessionId"), loc)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	ack := models.LocationUpdateResponse{
		SessionID:         result.Session.ID,
		CurrentPointIndex: result.Session.CurrentIndex,
		Advanced:          result.Advanced,
		Completed:         result.Completed,
		Progress:          toProgress(result.Progress),
		DistanceMeters:    result.DistanceMeters,
	}
	if result.Reached != nil {
		point := toTourPoint(result.Reached)
		ack.ReachedPoint = &point
	}
	response.JSON(w, r, http.StatusOK, ack)
}

// CurrentContent handles GET /v1/tour-sessions/{sessionId}/current-content.
func (h *TourHandler) CurrentContent(w http.ResponseWriter, r *http.Request) {
	lang := strings.TrimSpace(r.URL.Query().Get("language"))
	if len(lang) > tour.MaxLanguageLength {
		response.BadRequest(w, r, "language is too long", []models.FieldError{
			{Field: "language", Message: "must be a language code"},
		})
		return
	}

	content, err := h.service.CurrentContent(r.Context(), chi.URLParam(r, "sessionId"), lang)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	out := models.CurrentContent{
		Completed:    content.Completed,
		Description:  content.Narration,
		AudioContent: content.Audio,
		Language:     content.Language,
		Progress:     toProgress(content.Progress),
	}
	if content.Completed {
		out.Message = "Tour completed"
	}
	if content.Waypoint != nil {
		point := toTourPoint(content.Waypoint)
		out.Point = &point
	}
	response.JSON(w, r, http.StatusOK, out)
}

// ListLanguages handles GET /v1/languages.
func (h *TourHandler) ListLanguages(w http.ResponseWriter, r *http.Request) {
	langs := tour.SupportedLanguages()
	out := models.LanguageList{Languages: make([]models.Language, 0, len(langs))}
	for _, l := range langs {
		out.Languages = append(out.Languages, models.Language{Code: l.Code, Name: l.Name, Flag: l.Flag})
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	response.JSON(w, r, http.StatusOK, out)
}
