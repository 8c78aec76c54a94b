package maps

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/gpstunnel/gpstunnel/internal/telemetry"
)

const meterName = "github.com/gpstunnel/gpstunnel/internal/maps"

// FeatureFlags exposes the kill switches consulted before calling the provider.
// A nil FeatureFlags leaves every operation enabled.
type FeatureFlags interface {
	IsPlaceSearchDisabled(ctx context.Context) bool
	IsNavigationDisabled(ctx context.Context) bool
	IsGeocodingDisabled(ctx context.Context) bool
	IsWalkingOnlyNavigation(ctx context.Context) bool
}

// ServiceConfig holds configuration for the maps service.
type ServiceConfig struct {
	// Provider is the maps data provider.
	Provider Provider

	// Flags gates operations at runtime (optional).
	Flags FeatureFlags

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache directions (default: 5 minutes).
	CacheTTL time.Duration

	// CacheGridSize is the size of cache grid cells in degrees (default: 0.001 ~ 110m).
	// Requests whose endpoints fall in the same cells share cached directions.
	CacheGridSize float64

	// StaleIfErrorTTL allows serving stale directions on provider errors (default: 15 minutes).
	StaleIfErrorTTL time.Duration

	// CleanupInterval is how often to clean up expired entries (default: 5 minutes).
	CleanupInterval time.Duration
}

// Service validates maps requests, applies feature flags and caches directions.
type Service struct {
	provider        Provider
	flags           FeatureFlags
	logger          zerolog.Logger
	cacheTTL        time.Duration
	cacheGridSize   float64
	staleIfErrorTTL time.Duration
	cleanupInterval time.Duration

	requests metric.Int64Counter
	latency  metric.Float64Histogram

	inflight singleflight.Group

	mu          sync.RWMutex
	cache       map[string]*cachedDirections
	lastCleanup time.Time
}

type cachedDirections struct {
	directions *Directions
	fetchedAt  time.Time
	expiresAt  time.Time
}

// NewService creates a new maps service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	cacheGridSize := cfg.CacheGridSize
	if cacheGridSize == 0 {
		cacheGridSize = 0.001
	}

	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}

	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval == 0 {
		cleanupInterval = 5 * time.Minute
	}

	s := &Service{
		provider:        cfg.Provider,
		flags:           cfg.Flags,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		cacheGridSize:   cacheGridSize,
		staleIfErrorTTL: staleIfErrorTTL,
		cleanupInterval: cleanupInterval,
		cache:           make(map[string]*cachedDirections),
	}
	s.initMetrics()
	return s
}

func (s *Service) initMetrics() {
	meter := telemetry.Meter(meterName)

	requests, err := meter.Int64Counter(
		"maps.provider.requests",
		metric.WithDescription("Maps provider calls by operation and outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to create maps request counter")
	} else {
		s.requests = requests
	}

	latency, err := meter.Float64Histogram(
		"maps.provider.duration",
		metric.WithDescription("Duration of maps provider calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to create maps latency histogram")
	} else {
		s.latency = latency
	}
}

func (s *Service) record(ctx context.Context, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", s.provider.Name()),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	if s.requests != nil {
		s.requests.Add(ctx, 1, attrs)
	}
	if s.latency != nil {
		s.latency.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// SearchPlaces runs a free-text place search.
// Location bias is applied only when both coordinates are given.
func (s *Service) SearchPlaces(ctx context.Context, req PlaceSearchRequest) ([]Place, error) {
	if s.flags != nil && s.flags.IsPlaceSearchDisabled(ctx) {
		return nil, s.disabled("place search")
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" || utf8.RuneCountInString(req.Query) > MaxQueryLength {
		return nil, s.invalid("INVALID_QUERY", fmt.Sprintf("query must be between 1 and %d characters", MaxQueryLength))
	}
	if req.Radius == 0 {
		req.Radius = DefaultSearchRadius
	}
	if req.Radius < MinSearchRadius || req.Radius > MaxSearchRadius {
		return nil, s.invalid("INVALID_RADIUS", fmt.Sprintf("radius must be between %d and %d meters", MinSearchRadius, MaxSearchRadius))
	}
	if req.Bias != nil {
		if err := validateCoordinates(*req.Bias); err != nil {
			return nil, s.invalid("INVALID_LOCATION", err.Error())
		}
	}
	req.Language = normalizeLanguage(req.Language)

	start := time.Now()
	places, err := s.provider.SearchPlaces(ctx, req)
	s.record(ctx, "search_places", start, err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("query", req.Query).
			Str("provider", s.provider.Name()).
			Msg("place search failed")
		return nil, err
	}

	s.logger.Debug().
		Str("query", req.Query).
		Int("results", len(places)).
		Msg("place search completed")
	return places, nil
}

// Directions returns the primary route between two points.
// Uses cached data if available and not expired.
func (s *Service) Directions(ctx context.Context, req DirectionsRequest) (*Directions, error) {
	if s.flags != nil && s.flags.IsNavigationDisabled(ctx) {
		return nil, s.disabled("navigation")
	}

	if err := validateCoordinates(req.Origin); err != nil {
		return nil, s.invalid("INVALID_ORIGIN", "invalid origin coordinates: "+err.Error())
	}
	if err := validateCoordinates(req.Destination); err != nil {
		return nil, s.invalid("INVALID_DESTINATION", "invalid destination coordinates: "+err.Error())
	}

	if req.Mode == "" {
		req.Mode = ModeDriving
	}
	if !req.Mode.Valid() {
		return nil, s.invalid("INVALID_MODE", fmt.Sprintf("unsupported travel mode %q", req.Mode))
	}
	if s.flags != nil && s.flags.IsWalkingOnlyNavigation(ctx) && req.Mode != ModeWalking {
		s.logger.Debug().
			Str("requested_mode", string(req.Mode)).
			Msg("walking-only navigation active, overriding travel mode")
		req.Mode = ModeWalking
	}

	avoid, err := normalizeAvoid(req.Avoid)
	if err != nil {
		return nil, s.invalid("INVALID_AVOID", err.Error())
	}
	req.Avoid = avoid
	req.Language = normalizeLanguage(req.Language)

	cacheKey := s.cacheKey(req)

	s.mu.RLock()
	if cached, ok := s.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		s.logger.Debug().
			Str("cache_key", cacheKey).
			Msg("cache hit for directions")
		return cached.directions, nil
	}
	s.mu.RUnlock()

	return s.fetchDirections(ctx, req, cacheKey)
}

// fetchDirections fetches directions from the provider and updates the cache.
// Concurrent misses for the same cache key share one provider call; s.mu only
// guards the cache map and is never held across the call.
func (s *Service) fetchDirections(ctx context.Context, req DirectionsRequest, cacheKey string) (*Directions, error) {
	ch := s.inflight.DoChan(cacheKey, func() (any, error) {
		// Shared by every waiter; detached from any single caller.
		return s.loadDirections(context.WithoutCancel(ctx), req, cacheKey)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Directions), nil
	}
}

func (s *Service) loadDirections(ctx context.Context, req DirectionsRequest, cacheKey string) (*Directions, error) {
	s.mu.RLock()
	cached, ok := s.cache[cacheKey]
	s.mu.RUnlock()
	if ok && time.Now().Before(cached.expiresAt) {
		return cached.directions, nil
	}

	s.logger.Debug().
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Str("mode", string(req.Mode)).
		Str("provider", s.provider.Name()).
		Msg("fetching directions from provider")

	start := time.Now()
	directions, err := s.provider.Directions(ctx, req)
	s.record(ctx, "directions", start, err)
	if err != nil {
		s.logger.Error().Err(err).
			Float64("origin_lat", req.Origin.Lat).
			Float64("origin_lon", req.Origin.Lon).
			Float64("dest_lat", req.Destination.Lat).
			Float64("dest_lon", req.Destination.Lon).
			Str("mode", string(req.Mode)).
			Msg("failed to fetch directions")

		if ok && IsUpstreamError(err) && time.Now().Before(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", cached.fetchedAt).
				Str("cache_key", cacheKey).
				Msg("serving stale directions due to provider error")
			return cached.directions, nil
		}

		return nil, err
	}
	directions.Mode = req.Mode

	now := time.Now()
	s.mu.Lock()
	s.cache[cacheKey] = &cachedDirections{
		directions: directions,
		fetchedAt:  now,
		expiresAt:  now.Add(s.cacheTTL),
	}
	s.cleanupIfNeeded()
	s.mu.Unlock()

	return directions, nil
}

// Geocode resolves an address to its best-matching position.
func (s *Service) Geocode(ctx context.Context, req GeocodeRequest) (*GeocodeResult, error) {
	if s.flags != nil && s.flags.IsGeocodingDisabled(ctx) {
		return nil, s.disabled("geocoding")
	}

	req.Address = strings.TrimSpace(req.Address)
	if req.Address == "" {
		return nil, s.invalid("INVALID_ADDRESS", "address must not be empty")
	}
	req.Language = normalizeLanguage(req.Language)

	start := time.Now()
	result, err := s.provider.Geocode(ctx, req)
	s.record(ctx, "geocode", start, err)
	if err != nil {
		s.logger.Error().Err(err).
			Str("provider", s.provider.Name()).
			Msg("geocoding failed")
		return nil, err
	}
	return result, nil
}

// cacheKey generates a cache key for a directions request.
// Format: {mode}:{language}:{avoid}:{gridOriginLat},{gridOriginLon}:{gridDestLat},{gridDestLon}.
func (s *Service) cacheKey(req DirectionsRequest) string {
	grid := func(v float64) float64 {
		return math.Floor(v/s.cacheGridSize) * s.cacheGridSize
	}

	return fmt.Sprintf("%s:%s:%s:%.4f,%.4f:%.4f,%.4f",
		req.Mode,
		req.Language,
		strings.Join(req.Avoid, "|"),
		grid(req.Origin.Lat), grid(req.Origin.Lon),
		grid(req.Destination.Lat), grid(req.Destination.Lon),
	)
}

// cleanupIfNeeded removes entries past the stale-if-error window. Callers hold s.mu.
func (s *Service) cleanupIfNeeded() {
	now := time.Now()
	if now.Sub(s.lastCleanup) < s.cleanupInterval {
		return
	}

	s.lastCleanup = now
	expired := 0

	for key, cached := range s.cache {
		if now.After(cached.fetchedAt.Add(s.staleIfErrorTTL)) {
			delete(s.cache, key)
			expired++
		}
	}

	if expired > 0 {
		s.logger.Debug().
			Int("expired_entries", expired).
			Msg("cleaned up expired directions cache entries")
	}
}

// InvalidateCache clears all cached directions.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cachedDirections)
}

// CacheStats returns cache statistics.
func (s *Service) CacheStats() CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	fresh := 0
	stale := 0

	for _, c := range s.cache {
		if now.Before(c.expiresAt) {
			fresh++
		} else if now.Before(c.fetchedAt.Add(s.staleIfErrorTTL)) {
			stale++
		}
	}

	return CacheStats{
		TotalEntries: len(s.cache),
		FreshEntries: fresh,
		StaleEntries: stale,
		Provider:     s.provider.Name(),
	}
}

// CacheStats contains cache statistics.
type CacheStats struct {
	TotalEntries int
	FreshEntries int
	StaleEntries int
	Provider     string
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

func (s *Service) invalid(code, message string) error {
	return &Error{
		Provider: s.provider.Name(),
		Code:     code,
		Message:  message,
		Err:      ErrInvalidInput,
	}
}

func (s *Service) disabled(feature string) error {
	return &Error{
		Provider: s.provider.Name(),
		Code:     "FEATURE_DISABLED",
		Message:  feature + " is temporarily disabled",
		Err:      ErrFeatureDisabled,
	}
}

// IsUpstreamError reports whether err is a provider availability failure.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}

func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return DefaultLanguage
	}
	return lang
}

// normalizeAvoid validates, dedupes and sorts the avoid list.
func normalizeAvoid(avoid []string) ([]string, error) {
	if len(avoid) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(avoid))
	out := make([]string, 0, len(avoid))
	for _, a := range avoid {
		a = strings.ToLower(strings.TrimSpace(a))
		switch a {
		case AvoidTolls, AvoidHighways, AvoidFerries, AvoidIndoor:
		default:
			return nil, fmt.Errorf("unsupported avoid value %q", a)
		}
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out, nil
}

// validateCoordinates checks if coordinates are within valid ranges.
func validateCoordinates(c Coordinate) error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %f out of range [-90, 90]", c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("longitude %f out of range [-180, 180]", c.Lon)
	}
	return nil
}
