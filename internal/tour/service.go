package tour

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gpstunnel/gpstunnel/internal/events"
)

// Validation constants.
const (
	MaxNameLength     = 200
	MaxUserIDLength   = 128
	MaxLanguageLength = 16
)

// ServiceConfig holds configuration for the tour service.
type ServiceConfig struct {
	Catalog  Catalog
	Sessions SessionStore

	// Publisher receives progress events. Defaults to events.NopPublisher.
	Publisher events.Publisher

	Logger zerolog.Logger

	// DefaultLanguage is used when a session is created without a language
	// and as the content fallback. Default: "en"
	DefaultLanguage string

	// MaxConflictRetries bounds how often a location report is re-evaluated
	// after losing a compare-and-set race. Default: 5
	MaxConflictRetries uint64

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Service runs the tour progression engine against a catalog and a
// session store.
type Service struct {
	catalog         Catalog
	sessions        SessionStore
	publisher       events.Publisher
	logger          zerolog.Logger
	defaultLanguage string
	maxRetries      uint64
	now             func() time.Time
	locks           *sessionLocks
}

// NewService creates a new tour service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Publisher == nil {
		cfg.Publisher = events.NopPublisher{}
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = DefaultLanguage
	}
	if cfg.MaxConflictRetries == 0 {
		cfg.MaxConflictRetries = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		catalog:         cfg.Catalog,
		sessions:        cfg.Sessions,
		publisher:       cfg.Publisher,
		logger:          cfg.Logger,
		defaultLanguage: cfg.DefaultLanguage,
		maxRetries:      cfg.MaxConflictRetries,
		now:             cfg.Now,
		locks:           newSessionLocks(),
	}
}

// DefaultLanguage returns the configured fallback language.
func (s *Service) DefaultLanguage() string {
	return s.defaultLanguage
}

// ListActiveRoutes returns all active routes.
func (s *Service) ListActiveRoutes(ctx context.Context) ([]*Route, error) {
	return s.catalog.ListActiveRoutes(ctx)
}

// GetRoute retrieves a route by ID.
func (s *Service) GetRoute(ctx context.Context, routeID string) (*Route, error) {
	return s.catalog.GetRoute(ctx, routeID)
}

// GetWaypoints returns the route's waypoints sorted by order.
func (s *Service) GetWaypoints(ctx context.Context, routeID string) (*Route, []Waypoint, error) {
	route, err := s.catalog.GetRoute(ctx, routeID)
	if err != nil {
		return nil, nil, err
	}

	seq, err := s.sequence(ctx, route)
	if err != nil {
		return nil, nil, err
	}
	return route, seq, nil
}

// sequence loads the route's waypoints from the catalog and orders them.
// It is recomputed on every call so catalog edits are picked up.
func (s *Service) sequence(ctx context.Context, route *Route) ([]Waypoint, error) {
	waypoints, err := s.catalog.GetWaypoints(ctx, route.WaypointIDs)
	if err != nil {
		return nil, fmt.Errorf("load waypoints: %w", err)
	}
	return SortWaypoints(route, waypoints), nil
}

// CreateSession starts a traversal of an active route.
func (s *Service) CreateSession(ctx context.Context, routeID, userID, language string) (*Session, error) {
	var fieldErrors []FieldError
	if strings.TrimSpace(routeID) == "" {
		fieldErrors = append(fieldErrors, FieldError{Field: "routeId", Message: "is required"})
	}
	if strings.TrimSpace(userID) == "" {
		fieldErrors = append(fieldErrors, FieldError{Field: "userId", Message: "is required"})
	} else if len(userID) > MaxUserIDLength {
		fieldErrors = append(fieldErrors, FieldError{Field: "userId", Message: fmt.Sprintf("must be at most %d characters", MaxUserIDLength)})
	}
	if len(language) > MaxLanguageLength {
		fieldErrors = append(fieldErrors, FieldError{Field: "language", Message: fmt.Sprintf("must be at most %d characters", MaxLanguageLength)})
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	route, err := s.catalog.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}
	if !route.Active {
		return nil, ErrRouteNotFound
	}

	if language == "" {
		language = s.defaultLanguage
	}

	now := s.now()
	session := &Session{
		ID:           "sess_" + uuid.New().String(),
		RouteID:      route.ID,
		UserID:       userID,
		Language:     language,
		CurrentIndex: 0,
		Active:       true,
		StartedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info().
		Str("session_id", session.ID).
		Str("route_id", route.ID).
		Str("language", language).
		Msg("tour session started")

	return session, nil
}

// SessionStatus is a session together with its progress along the route.
type SessionStatus struct {
	Session   *Session
	Progress  Progress
	Completed bool
}

// GetSession retrieves a session and its progress.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	seq, err := s.sessionSequence(ctx, session)
	if err != nil {
		return nil, err
	}

	return &SessionStatus{
		Session:   session,
		Progress:  progressOf(session.CurrentIndex, len(seq)),
		Completed: session.CurrentIndex >= len(seq),
	}, nil
}

// sessionSequence returns the ordered waypoints of the session's route.
// A route removed from the catalog yields an empty sequence.
func (s *Service) sessionSequence(ctx context.Context, session *Session) ([]Waypoint, error) {
	route, err := s.catalog.GetRoute(ctx, session.RouteID)
	if errors.Is(err, ErrRouteNotFound) {
		s.logger.Warn().
			Str("session_id", session.ID).
			Str("route_id", session.RouteID).
			Msg("session references a missing route")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.sequence(ctx, route)
}

func progressOf(index, total int) Progress {
	if index >= total {
		return Progress{Current: total, Total: total}
	}
	return Progress{Current: index + 1, Total: total}
}

// LocationResult acknowledges a location report.
type LocationResult struct {
	Session   *Session
	Advanced  bool
	Completed bool
	Progress  Progress

	// Reached is the waypoint whose geofence was entered, if Advanced.
	Reached *Waypoint

	// DistanceMeters is the distance to the waypoint the report was
	// checked against. Zero when the tour was already complete.
	DistanceMeters float64
}

// ReportLocation stores a reported location and advances the session when
// it lies within the next waypoint's geofence. The location and any index
// change are written in one compare-and-set step, so concurrent reports for
// the same session cannot advance it twice for one crossing.
func (s *Service) ReportLocation(ctx context.Context, sessionID string, loc Location) (*LocationResult, error) {
	fieldErrors := validatePosition(loc.Position, "")
	if loc.Accuracy != nil && *loc.Accuracy < 0 {
		fieldErrors = append(fieldErrors, FieldError{Field: "accuracy", Message: "must not be negative"})
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}
	if loc.Timestamp.IsZero() {
		loc.Timestamp = s.now()
	}

	var result *LocationResult
	attempts := 0

	operation := func() error {
		attempts++

		session, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			return backoff.Permanent(err)
		}

		seq, err := s.sessionSequence(ctx, session)
		if err != nil {
			return backoff.Permanent(err)
		}

		progression := Evaluate(seq, session.CurrentIndex, loc)

		update := ProgressUpdate{
			CurrentIndex: session.CurrentIndex,
			Location:     loc,
			UpdatedAt:    s.now(),
		}
		if progression.Advanced {
			update.CurrentIndex = progression.CurrentIndex
		}

		updated, err := s.sessions.UpdateProgress(ctx, session.ID, session.Version, update)
		if err != nil {
			if errors.Is(err, ErrVersionConflict) {
				s.logger.Debug().
					Str("session_id", sessionID).
					Int("attempt", attempts).
					Msg("session changed concurrently, re-evaluating")
				return err
			}
			return backoff.Permanent(err)
		}

		result = &LocationResult{
			Session:        updated,
			Advanced:       progression.Advanced,
			Completed:      updated.CurrentIndex >= len(seq),
			Progress:       progressOf(updated.CurrentIndex, len(seq)),
			DistanceMeters: progression.DistanceMeters,
		}
		if progression.Advanced {
			result.Reached = progression.Target
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 100 * time.Millisecond
	bo.MaxElapsedTime = 0

	// Publishing happens after the lock is released.
	release := s.locks.Lock(sessionID)
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx))
	release()
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("report location: %w", err)
	}

	if result.Advanced {
		s.logger.Info().
			Str("session_id", sessionID).
			Str("waypoint_id", result.Reached.ID).
			Int("current_index", result.Session.CurrentIndex).
			Bool("completed", result.Completed).
			Msg("waypoint reached")
		s.publishProgress(ctx, result)
	}

	return result, nil
}

func (s *Service) publishProgress(ctx context.Context, result *LocationResult) {
	eventType := events.EventWaypointReached
	if result.Completed {
		eventType = events.EventTourCompleted
	}

	event := events.ProgressEvent{
		ID:         "evt_" + uuid.New().String(),
		Type:       eventType,
		SessionID:  result.Session.ID,
		RouteID:    result.Session.RouteID,
		UserID:     result.Session.UserID,
		WaypointID: result.Reached.ID,
		Index:      result.Session.CurrentIndex,
		Total:      result.Progress.Total,
		OccurredAt: result.Session.UpdatedAt,
	}

	// The advance is already stored; a lost event only affects consumers.
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn().
			Err(err).
			Str("session_id", event.SessionID).
			Str("event_type", string(event.Type)).
			Msg("failed to publish progress event")
	}
}

// CurrentContent returns what the session should present now. An empty
// language selects the session's language.
func (s *Service) CurrentContent(ctx context.Context, sessionID, language string) (*Content, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	route, err := s.catalog.GetRoute(ctx, session.RouteID)
	if err != nil {
		return nil, err
	}

	seq, err := s.sequence(ctx, route)
	if err != nil {
		return nil, err
	}

	if language == "" {
		language = session.Language
	}
	if language == "" {
		language = s.defaultLanguage
	}

	content := ResolveContent(seq, session.CurrentIndex, language, s.defaultLanguage)
	return &content, nil
}

// WaypointInput holds the fields for creating a waypoint.
type WaypointInput struct {
	Name          string
	Position      Position
	TriggerRadius *float64
	Order         int
	Narration     map[string]string
	Audio         map[string]string
}

// CreateWaypoint validates and stores a new waypoint.
func (s *Service) CreateWaypoint(ctx context.Context, input WaypointInput) (*Waypoint, error) {
	if fieldErrors := s.validateWaypointInput(input); len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	radius := DefaultTriggerRadius
	if input.TriggerRadius != nil {
		radius = *input.TriggerRadius
	}

	wp := &Waypoint{
		ID:            "wp_" + uuid.New().String(),
		Name:          strings.TrimSpace(input.Name),
		Position:      input.Position,
		TriggerRadius: radius,
		Order:         input.Order,
		Narration:     input.Narration,
		Audio:         input.Audio,
		CreatedAt:     s.now(),
	}

	if err := s.catalog.CreateWaypoint(ctx, wp); err != nil {
		return nil, fmt.Errorf("create waypoint: %w", err)
	}
	return wp, nil
}

func (s *Service) validateWaypointInput(input WaypointInput) []FieldError {
	var errs []FieldError

	name := strings.TrimSpace(input.Name)
	if name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "is required"})
	} else if len(name) > MaxNameLength {
		errs = append(errs, FieldError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)})
	}

	errs = append(errs, validatePosition(input.Position, "")...)

	if input.TriggerRadius != nil && *input.TriggerRadius <= 0 {
		errs = append(errs, FieldError{Field: "triggerRadius", Message: "must be greater than 0"})
	}
	if input.Order < 0 {
		errs = append(errs, FieldError{Field: "order", Message: "must not be negative"})
	}
	if _, ok := input.Narration[s.defaultLanguage]; !ok {
		errs = append(errs, FieldError{Field: "description", Message: fmt.Sprintf("must contain a %q entry", s.defaultLanguage)})
	}
	if _, ok := input.Audio[s.defaultLanguage]; !ok {
		errs = append(errs, FieldError{Field: "audioContent", Message: fmt.Sprintf("must contain a %q entry", s.defaultLanguage)})
	}

	return errs
}

// RouteInput holds the fields for creating a route.
type RouteInput struct {
	Name        string
	Description map[string]string
	WaypointIDs []string
	Active      *bool
}

// CreateRoute validates and stores a new route. Every referenced waypoint
// must already exist.
func (s *Service) CreateRoute(ctx context.Context, input RouteInput) (*Route, error) {
	var fieldErrors []FieldError

	name := strings.TrimSpace(input.Name)
	if name == "" {
		fieldErrors = append(fieldErrors, FieldError{Field: "name", Message: "is required"})
	} else if len(name) > MaxNameLength {
		fieldErrors = append(fieldErrors, FieldError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)})
	}
	if _, ok := input.Description[s.defaultLanguage]; !ok {
		fieldErrors = append(fieldErrors, FieldError{Field: "description", Message: fmt.Sprintf("must contain a %q entry", s.defaultLanguage)})
	}
	if len(input.WaypointIDs) == 0 {
		fieldErrors = append(fieldErrors, FieldError{Field: "tourPointIds", Message: "must contain at least one tour point"})
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	found, err := s.catalog.GetWaypoints(ctx, input.WaypointIDs)
	if err != nil {
		return nil, fmt.Errorf("load waypoints: %w", err)
	}
	known := make(map[string]bool, len(found))
	for _, wp := range found {
		known[wp.ID] = true
	}
	for _, id := range input.WaypointIDs {
		if !known[id] {
			fieldErrors = append(fieldErrors, FieldError{Field: "tourPointIds", Message: fmt.Sprintf("references unknown tour point %q", id)})
		}
	}
	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Errors: fieldErrors}
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}

	route := &Route{
		ID:          "route_" + uuid.New().String(),
		Name:        name,
		Description: input.Description,
		WaypointIDs: input.WaypointIDs,
		Active:      active,
		CreatedAt:   s.now(),
	}

	if err := s.catalog.CreateRoute(ctx, route); err != nil {
		return nil, fmt.Errorf("create route: %w", err)
	}

	s.logger.Info().
		Str("route_id", route.ID).
		Int("waypoints", len(route.WaypointIDs)).
		Msg("tour route created")

	return route, nil
}
