package handler

import (
	"net/http"

	"github.com/gpstunnel/gpstunnel/internal/api/models"
	"github.com/gpstunnel/gpstunnel/internal/api/response"
	"github.com/gpstunnel/gpstunnel/internal/maps"
)

// MapsHandler proxies maps requests so the provider key stays server side.
type MapsHandler struct {
	service *maps.Service
}

// NewMapsHandler creates a new MapsHandler.
func NewMapsHandler(service *maps.Service) *MapsHandler {
	return &MapsHandler{service: service}
}

// SearchPlaces handles POST /v1/search/places.
func (h *MapsHandler) SearchPlaces(w http.ResponseWriter, r *http.Request) {
	var req models.PlaceSearchRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		response.BadRequest(w, r, "latitude and longitude must be given together", []models.FieldError{
			{Field: "latitude", Message: "requires longitude"},
		})
		return
	}

	search := maps.PlaceSearchRequest{
		Query:    req.Query,
		Radius:   req.Radius,
		Language: req.Language,
	}
	if req.Latitude != nil {
		search.Bias = &maps.Coordinate{Lat: *req.Latitude, Lon: *req.Longitude}
	}

	places, err := h.service.SearchPlaces(r.Context(), search)
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	out := models.PlaceSearchResponse{Results: make([]models.Place, 0, len(places))}
	for _, p := range places {
		types := p.Types
		if types == nil {
			types = []string{}
		}
		out.Results = append(out.Results, models.Place{
			PlaceID:          p.ID,
			Name:             p.Name,
			FormattedAddress: p.Address,
			Latitude:         p.Location.Lat,
			Longitude:        p.Location.Lon,
			Types:            types,
			Rating:           p.Rating,
		})
	}
	response.JSON(w, r, http.StatusOK, out)
}

// CalculateDirections handles POST /v1/directions/calculate.
func (h *MapsHandler) CalculateDirections(w http.ResponseWriter, r *http.Request) {
	var req models.DirectionsRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	if errs := missingCoordinates(
		coordinateField{"originLatitude", req.OriginLatitude},
		coordinateField{"originLongitude", req.OriginLongitude},
		coordinateField{"destinationLatitude", req.DestinationLatitude},
		coordinateField{"destinationLongitude", req.DestinationLongitude},
	); len(errs) > 0 {
		response.BadRequest(w, r, "origin and destination coordinates are required", errs)
		return
	}

	directions, err := h.service.Directions(r.Context(), maps.DirectionsRequest{
		Origin:      maps.Coordinate{Lat: *req.OriginLatitude, Lon: *req.OriginLongitude},
		Destination: maps.Coordinate{Lat: *req.DestinationLatitude, Lon: *req.DestinationLongitude},
		Mode:        maps.TravelMode(req.TravelMode),
		Language:    req.Language,
		Avoid:       req.Avoid,
	})
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, toDirectionsResponse(directions))
}

func toPosition(c maps.Coordinate) models.Position {
	return models.Position{Latitude: c.Lat, Longitude: c.Lon}
}

func toDirectionsResponse(d *maps.Directions) models.DirectionsResponse {
	out := models.DirectionsResponse{
		TravelMode:          string(d.Mode),
		TotalDistanceText:   d.DistanceText,
		TotalDistanceMeters: d.DistanceMeters,
		TotalDurationText:   d.DurationText,
		TotalDurationSecs:   d.DurationSeconds,
		StartAddress:        d.StartAddress,
		EndAddress:          d.EndAddress,
		OverviewPolyline:    d.OverviewPolyline,
		Path:                make([]models.Position, 0, len(d.Path)),
		Steps:               make([]models.RouteStep, 0, len(d.Steps)),
	}
	for _, c := range d.Path {
		out.Path = append(out.Path, toPosition(c))
	}
	for _, s := range d.Steps {
		out.Steps = append(out.Steps, models.RouteStep{
			Instruction:    s.Instruction,
			DistanceText:   s.DistanceText,
			DistanceMeters: s.DistanceMeters,
			DurationText:   s.DurationText,
			DurationSecs:   s.DurationSeconds,
			Start:          toPosition(s.Start),
			End:            toPosition(s.End),
			Maneuver:       s.Maneuver,
			Polyline:       s.Polyline,
		})
	}
	if d.Bounds != nil {
		out.Bounds = &models.Bounds{
			Northeast: toPosition(d.Bounds.Northeast),
			Southwest: toPosition(d.Bounds.Southwest),
		}
	}
	return out
}

// GeocodeAddress handles POST /v1/geocode/address.
func (h *MapsHandler) GeocodeAddress(w http.ResponseWriter, r *http.Request) {
	var req models.GeocodeRequest
	if err := response.DecodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, r, err.Error(), nil)
		return
	}

	result, err := h.service.Geocode(r.Context(), maps.GeocodeRequest{Address: req.Address, Language: req.Language})
	if err != nil {
		response.FromError(w, r, err)
		return
	}

	response.JSON(w, r, http.StatusOK, models.GeocodeResponse{
		Address:          result.Address,
		FormattedAddress: result.FormattedAddress,
		Latitude:         result.Location.Lat,
		Longitude:        result.Location.Lon,
	})
}
