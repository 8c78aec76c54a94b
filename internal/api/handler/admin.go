package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gpstunnel/gpstunnel/internal/api/middleware"
	"github.com/gpstunnel/gpstunnel/internal/api/models"
	"github.com/gpstunnel/gpstunnel/internal/api/response"
	"github.com/gpstunnel/gpstunnel/internal/tour"
)

// AdminHandler serves catalog writes.
type AdminHandler struct {
	service *tour.Service
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *tour.Service) *AdminHandler {
	return &AdminHandler{service: service}
}

// CreateTourPoint handles POST /v1/admin/tour-points.
func (h *AdminHandler) CreateTourPoint(w http.ResponseWriter, r *http.Request) {
	var req models.TourPointCreateRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if errs := missingCoordinates(
		coordinateField{"latitude", req.Latitude},
		coordinateField{"longitude", req.Longitude},
	); len(errs) > 0 {
		response.BadRequest(w, r, "tour point requires latitude and longitude", errs)
		return
	}

	wp, err := h.service.CreateWaypoint(r.Context(), tour.WaypointInput{
		Name:          req.Name,
		Position:      tour.Position{Lat: *req.Latitude, Lon: *req.Longitude},
		TriggerRadius: req.TriggerRadius,
		Order:         req.Order,
		Narration:     req.Description,
		Audio:         req.AudioContent,
	})
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("tour_point_id", wp.ID).
		Str("admin", middleware.GetSubject(r.Context())).
		Msg("tour point created")

	response.Created(w, r, "", toTourPoint(wp))
}

// CreateTourRoute handles POST /v1/admin/tour-routes.
func (h *AdminHandler) CreateTourRoute(w http.ResponseWriter, r *http.Request) {
	var req models.TourRouteCreateRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	route, err := h.service.CreateRoute(r.Context(), tour.RouteInput{
		Name:        req.Name,
		Description: req.Description,
		WaypointIDs: req.TourPointIDs,
		Active:      req.IsActive,
	})
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().
		Str("route_id", route.ID).
		Int("tour_points", len(route.WaypointIDs)).
		Str("admin", middleware.GetSubject(r.Context())).
		Msg("tour route created")

	response.Created(w, r, "/v1/tour-routes/"+route.ID, toTourRoute(route))
}
