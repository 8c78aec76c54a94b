package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/gpstunnel/gpstunnel/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	RequestLimit int
	WindowLength time.Duration
}

// Rate limit tiers.
var (
	// MapsRateLimit guards the endpoints that spend Google Maps quota.
	MapsRateLimit = RateLimitConfig{RequestLimit: 30, WindowLength: time.Minute}

	// LocationRateLimit allows roughly one report per second per session.
	LocationRateLimit = RateLimitConfig{RequestLimit: 60, WindowLength: time.Minute}

	// AdminRateLimit applies to catalog and flag writes.
	AdminRateLimit = RateLimitConfig{RequestLimit: 20, WindowLength: time.Minute}

	// StandardRateLimit applies to catalog and session reads.
	StandardRateLimit = RateLimitConfig{RequestLimit: 100, WindowLength: time.Minute}
)

// RateLimitByIP limits by client IP (after chi's RealIP).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, httprate.KeyByRealIP)
}

// RateLimitBySession limits per {sessionId} URL parameter so a device
// polling fast cannot starve others behind the same NAT. Requests without
// the parameter fall back to the client IP.
func RateLimitBySession(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, func(r *http.Request) (string, error) {
		if id := chi.URLParam(r, "sessionId"); id != "" {
			return "session:" + id, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

// RateLimitBySubject limits per authenticated token subject, falling back
// to the client IP.
func RateLimitBySubject(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return limit(cfg, func(r *http.Request) (string, error) {
		if sub := GetSubject(r.Context()); sub != "" {
			return "subject:" + sub, nil
		}
		return httprate.KeyByRealIP(r)
	})
}

func limit(cfg RateLimitConfig, key httprate.KeyFunc) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(cfg.WindowLength.Seconds()))
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem := models.NewTooManyRequests(GetRequestID(r.Context()), "Rate limit exceeded. Please try again later.")
			problem.Instance = r.URL.Path
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w)
		}),
	)
}
