// Package config assembles service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/gpstunnel/gpstunnel/internal/database"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Event backends.
const (
	EventsNone   = "none"
	EventsRedis  = "redis"
	EventsPubSub = "pubsub"
)

// ErrInvalidConfig is returned when a setting has an unusable value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full service configuration.
type Config struct {
	Port        string
	Environment string

	StoreBackend  string
	EventsBackend string

	Postgres database.Config
	Mongo    database.MongoConfig
	Redis    database.RedisConfig
	PubSub   PubSubConfig

	Maps      MapsConfig
	Auth      AuthConfig
	Tour      TourConfig
	Telemetry TelemetryConfig
	Worker    WorkerConfig

	CORSOrigins []string

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool
}

// PubSubConfig names the progress event topic and worker subscription.
type PubSubConfig struct {
	ProjectID    string
	Topic        string
	Subscription string
}

// MapsConfig configures the Google Maps web services client.
type MapsConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	CacheTTL   time.Duration
}

// AuthConfig configures bearer tokens on the admin endpoints.
type AuthConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
}

// TourConfig configures the progression engine.
type TourConfig struct {
	DefaultLanguage    string
	SeedFile           string
	SeedOnStart        bool
	MaxConflictRetries uint64
}

// WorkerConfig configures the progress event worker.
type WorkerConfig struct {
	// RelayToRedis republishes consumed events on the per-session Redis
	// channels.
	RelayToRedis bool
	StoreTimeout time.Duration
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	Insecure     bool

	// SampleRatio is the fraction of root traces sampled, 0 to 1.
	SampleRatio float64
}

// FromEnv loads an optional .env file and reads the configuration from
// the environment. Variables already set take precedence over .env.
func FromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}

	cfg := &Config{
		Port:          e.str("APP_PORT", "8080"),
		Environment:   e.str("APP_ENV", "development"),
		StoreBackend:  strings.ToLower(e.str("STORE_BACKEND", StoreMemory)),
		EventsBackend: strings.ToLower(e.str("EVENTS_BACKEND", EventsNone)),
		Postgres: database.Config{
			URL:             e.str("DATABASE_URL", ""),
			Host:            e.str("DB_HOST", "localhost"),
			Port:            e.integer("DB_PORT", 5432),
			User:            e.str("DB_USER", "gpstunnel"),
			Password:        e.str("DB_PASSWORD", "localdev"),
			Database:        e.str("DB_NAME", "gpstunnel"),
			SSLMode:         e.str("DB_SSL_MODE", "disable"),
			MaxOpenConns:    e.integer("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.integer("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Mongo: database.MongoConfig{
			URI:            e.str("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       e.str("MONGODB_DATABASE", "gpstunnel"),
			ConnectTimeout: e.duration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		},
		Redis: database.RedisConfig{
			URL:      e.str("REDIS_URL", ""),
			Addr:     e.str("REDIS_ADDR", "localhost:6379"),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.integer("REDIS_DB", 0),
		},
		PubSub: PubSubConfig{
			ProjectID:    e.str("PUBSUB_PROJECT_ID", e.str("GOOGLE_CLOUD_PROJECT", "")),
			Topic:        e.str("PUBSUB_TOPIC", "tour-progress"),
			Subscription: e.str("PUBSUB_SUBSCRIPTION", "tour-progress-worker"),
		},
		Maps: MapsConfig{
			APIKey:     e.str("GOOGLE_MAPS_API_KEY", ""),
			BaseURL:    e.str("GOOGLE_MAPS_BASE_URL", ""),
			Timeout:    e.duration("MAPS_TIMEOUT", 10*time.Second),
			MaxRetries: e.integer("MAPS_MAX_RETRIES", 2),
			CacheTTL:   e.duration("MAPS_CACHE_TTL", 5*time.Minute),
		},
		Auth: AuthConfig{
			SigningKey: e.str("JWT_SIGNING_KEY", ""),
			Issuer:     e.str("JWT_ISSUER", "gpstunnel"),
			Audience:   e.str("JWT_AUDIENCE", "gpstunnel-admin"),
		},
		Tour: TourConfig{
			DefaultLanguage:    e.str("TOUR_DEFAULT_LANGUAGE", "en"),
			SeedFile:           e.str("TOUR_SEED_FILE", ""),
			SeedOnStart:        e.boolean("TOUR_SEED_ON_START", true),
			MaxConflictRetries: uint64(e.integer("TOUR_CONFLICT_RETRIES", 5)), //nolint:gosec // validated below
		},
		Telemetry: TelemetryConfig{
			Enabled:      e.boolean("OTEL_ENABLED", false),
			OTLPEndpoint: e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:     e.boolean("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio:  e.ratio("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Worker: WorkerConfig{
			RelayToRedis: e.boolean("WORKER_RELAY_REDIS", false),
			StoreTimeout: e.duration("WORKER_STORE_TIMEOUT", 5*time.Second),
		},
		CORSOrigins: splitList(e.str("CORS_ORIGINS", "*")),
		RequireTLS:  e.boolean("REQUIRE_TLS", false),
	}

	if len(e.errs) > 0 {
		return nil, errors.Join(e.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory, StorePostgres, StoreMongo:
	default:
		return fmt.Errorf("%w: STORE_BACKEND %q", ErrInvalidConfig, c.StoreBackend)
	}
	switch c.EventsBackend {
	case EventsNone, EventsRedis:
	case EventsPubSub:
		if c.PubSub.ProjectID == "" {
			return fmt.Errorf("%w: PUBSUB_PROJECT_ID is required for the pubsub backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: EVENTS_BACKEND %q", ErrInvalidConfig, c.EventsBackend)
	}
	if c.Maps.MaxRetries < 0 {
		return fmt.Errorf("%w: MAPS_MAX_RETRIES must not be negative", ErrInvalidConfig)
	}
	if c.Tour.DefaultLanguage == "" {
		return fmt.Errorf("%w: TOUR_DEFAULT_LANGUAGE must not be empty", ErrInvalidConfig)
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a non-negative integer", ErrInvalidConfig, key, v))
		return def
	}
	return n
}

func (e *env) boolean(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidConfig, key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalidConfig, key, v))
		return def
	}
	return d
}

func (e *env) ratio(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > 1 {
		e.errs = append(e.errs, fmt.Errorf("%w: %s=%q is not a ratio between 0 and 1", ErrInvalidConfig, key, v))
		return def
	}
	return f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
