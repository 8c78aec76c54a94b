package featureflags

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration // How long to cache flags in memory
	DefaultFlags map[string]*Flag
}

// Service provides feature flag evaluation with caching and fallback to defaults.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	mu          sync.RWMutex
	cache       map[string]*Flag
	cacheExpiry time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 30 * time.Second
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
		cache:        make(map[string]*Flag),
	}
}

// GetFlag retrieves a feature flag by key.
// Falls back to the default when the repository has no value or fails.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if flag := s.getCached(key); flag != nil {
		return flag
	}

	flag, err := s.repo.GetFlag(ctx, key)
	if err == nil {
		s.setCached(key, flag)
		return flag
	}

	if !errors.Is(err, ErrFlagNotFound) {
		s.logger.Warn().Err(err).Str("flag", key).Msg("failed to get feature flag from repository")
	}

	return s.defaultFlags[key]
}

// GetAllFlags returns stored flags merged over the defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	result := make(map[string]*Flag, len(s.defaultFlags))
	for k, v := range s.defaultFlags {
		result[k] = v
	}

	flags, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to get feature flags from repository, using defaults")
		return result
	}

	for k, v := range flags {
		result[k] = v
	}

	s.mu.Lock()
	s.cache = flags
	s.cacheExpiry = time.Now().Add(s.cacheTTL)
	s.mu.Unlock()

	return result
}

// SetFlags validates and stores updates, then refreshes the cache.
// reason is recorded in the audit log line.
func (s *Service) SetFlags(ctx context.Context, updates []Update, reason string) ([]*Flag, error) {
	if err := Validate(updates); err != nil {
		return nil, err
	}

	now := time.Now()
	flags := make([]*Flag, 0, len(updates))
	for _, u := range updates {
		flags = append(flags, &Flag{Key: u.Key, Value: u.Value, UpdatedAt: now})
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, flag := range flags {
		s.cache[flag.Key] = flag
	}
	s.mu.Unlock()

	for _, flag := range flags {
		s.logger.Info().
			Str("flag", flag.Key).
			Interface("value", flag.Value).
			Str("reason", reason).
			Msg("feature flag updated")
	}

	return flags, nil
}

// InvalidateCache clears the cached flags, forcing a refresh on next access.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*Flag)
	s.cacheExpiry = time.Time{}
}

// IsEnabled returns true if the flag with the given key is truthy.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	return s.GetFlag(ctx, key).BoolValue(false)
}

func (s *Service) getCached(key string) *Flag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.cache[key]
}

func (s *Service) setCached(key string, flag *Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[key] = flag
	if s.cacheExpiry.Before(time.Now()) {
		s.cacheExpiry = time.Now().Add(s.cacheTTL)
	}
}

// IsPlaceSearchDisabled reports whether place search is switched off.
func (s *Service) IsPlaceSearchDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisablePlaceSearch)
}

// IsNavigationDisabled reports whether directions are switched off.
func (s *Service) IsNavigationDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableNavigation)
}

// IsGeocodingDisabled reports whether geocoding is switched off.
func (s *Service) IsGeocodingDisabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDisableGeocoding)
}

// IsWalkingOnlyNavigation reports whether directions are restricted to walking.
func (s *Service) IsWalkingOnlyNavigation(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagNavigationWalkingOnly)
}
