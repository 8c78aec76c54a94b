// Package events publishes tour progress events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType identifies what happened to a session.
type EventType string

// Event types.
const (
	EventWaypointReached EventType = "waypoint_reached"
	EventTourCompleted   EventType = "tour_completed"
)

// ErrInvalidEvent is returned when a payload cannot be decoded into a
// ProgressEvent.
var ErrInvalidEvent = errors.New("invalid progress event")

// ProgressEvent is emitted every time a session advances.
type ProgressEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	SessionID  string    `json:"sessionId"`
	RouteID    string    `json:"routeId"`
	UserID     string    `json:"userId"`
	WaypointID string    `json:"waypointId"`
	Index      int       `json:"index"`
	Total      int       `json:"total"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers progress events.
type Publisher interface {
	Publish(ctx context.Context, event ProgressEvent) error
	Close() error
}

// Encode serializes an event for transport.
func Encode(event ProgressEvent) ([]byte, error) {
	return json.Marshal(event)
}

// Decode parses a transported event and checks required fields.
func Decode(data []byte) (ProgressEvent, error) {
	var event ProgressEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return ProgressEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if event.SessionID == "" {
		return ProgressEvent{}, fmt.Errorf("%w: missing sessionId", ErrInvalidEvent)
	}
	switch event.Type {
	case EventWaypointReached, EventTourCompleted:
	default:
		return ProgressEvent{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, event.Type)
	}
	return event, nil
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, ProgressEvent) error { return nil }

// Close does nothing.
func (NopPublisher) Close() error { return nil }
