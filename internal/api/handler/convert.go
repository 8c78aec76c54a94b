package handler

import (
	"github.com/gpstunnel/gpstunnel/internal/api/models"
	"github.com/gpstunnel/gpstunnel/internal/tour"
)

func toTourPoint(wp *tour.Waypoint) models.TourPoint {
	return models.TourPoint{
		ID:            wp.ID,
		Name:          wp.Name,
		Description:   wp.Narration,
		Latitude:      wp.Position.Lat,
		Longitude:     wp.Position.Lon,
		TriggerRadius: wp.TriggerRadius,
		AudioContent:  wp.Audio,
		Order:         wp.Order,
		CreatedAt:     models.Timestamp(wp.CreatedAt),
	}
}

func toTourRoute(route *tour.Route) models.TourRoute {
	ids := route.WaypointIDs
	if ids == nil {
		ids = []string{}
	}
	return models.TourRoute{
		ID:           route.ID,
		Name:         route.Name,
		Description:  route.Description,
		TourPointIDs: ids,
		IsActive:     route.Active,
		CreatedAt:    models.Timestamp(route.CreatedAt),
	}
}

func toProgress(p tour.Progress) models.Progress {
	return models.Progress{Current: p.Current, Total: p.Total}
}

func toTourSession(status *tour.SessionStatus) models.TourSession {
	s := status.Session
	progress := toProgress(status.Progress)
	out := models.TourSession{
		ID:                s.ID,
		RouteID:           s.RouteID,
		UserID:            s.UserID,
		Language:          s.Language,
		CurrentPointIndex: s.CurrentIndex,
		IsActive:          s.Active,
		Completed:         status.Completed,
		Progress:          &progress,
		StartedAt:         models.Timestamp(s.StartedAt),
		UpdatedAt:         models.Timestamp(s.UpdatedAt),
	}
	if loc := s.LastKnownLocation; loc != nil {
		out.LastLocation = &models.UserLocation{
			Latitude:  &loc.Position.Lat,
			Longitude: &loc.Position.Lon,
			Accuracy:  loc.Accuracy,
			Timestamp: models.TimestampPtr(loc.Timestamp),
		}
	}
	return out
}

// coordinateField pairs a JSON field name with its decoded value.
type coordinateField struct {
	name  string
	value *float64
}

// missingCoordinates reports a field error for every coordinate absent from
// the request body. A missing coordinate must not decode as 0.
func missingCoordinates(fields ...coordinateField) []models.FieldError {
	var errs []models.FieldError
	for _, f := range fields {
		if f.value == nil {
			errs = append(errs, models.FieldError{Field: f.name, Message: "is required"})
		}
	}
	return errs
}
