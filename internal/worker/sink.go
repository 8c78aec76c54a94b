package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gpstunnel/gpstunnel/internal/database"
	"github.com/gpstunnel/gpstunnel/internal/events"
)

// Sink stores a decoded progress event.
type Sink interface {
	Store(ctx context.Context, event events.ProgressEvent) error
}

// PostgresSink appends events to tour_progress_events. Redelivered
// events are ignored by primary key.
type PostgresSink struct {
	db database.Querier
}

// NewPostgresSink creates a sink writing through db.
func NewPostgresSink(db database.Querier) *PostgresSink {
	return &PostgresSink{db: db}
}

// Store inserts the event unless it was stored before.
func (s *PostgresSink) Store(ctx context.Context, event events.ProgressEvent) error {
	query := `
		INSERT INTO tour_progress_events (
			id, type, session_id, route_id, user_id, waypoint_id, idx, total, occurred_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.Exec(ctx, query,
		EventID(event),
		string(event.Type),
		event.SessionID,
		event.RouteID,
		event.UserID,
		event.WaypointID,
		event.Index,
		event.Total,
		event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert progress event: %w", err)
	}
	return nil
}

// EventID returns the event's ID, or a key derived from the session and
// position when the publisher did not set one.
func EventID(event events.ProgressEvent) string {
	if event.ID != "" {
		return event.ID
	}
	return event.SessionID + ":" + string(event.Type) + ":" + strconv.Itoa(event.Index)
}

// RelaySink forwards events to another publisher, typically Redis so
// live clients see progress recorded by the worker.
type RelaySink struct {
	publisher events.Publisher
}

// NewRelaySink creates a sink publishing to p.
func NewRelaySink(p events.Publisher) *RelaySink {
	return &RelaySink{publisher: p}
}

// Store publishes the event.
func (s *RelaySink) Store(ctx context.Context, event events.ProgressEvent) error {
	return s.publisher.Publish(ctx, event)
}

// MultiSink stores into every sink in order and joins the errors.
type MultiSink []Sink

// Store writes to all sinks even when one fails.
func (m MultiSink) Store(ctx context.Context, event events.ProgressEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Store(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Sink = (*PostgresSink)(nil)
	_ Sink = (*RelaySink)(nil)
	_ Sink = MultiSink(nil)
)
