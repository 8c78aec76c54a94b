// Package main provides the entrypoint for the gpstunnel API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpstunnel/gpstunnel/internal/api"
	"github.com/gpstunnel/gpstunnel/internal/api/middleware"
	"github.com/gpstunnel/gpstunnel/internal/auth"
	"github.com/gpstunnel/gpstunnel/internal/config"
	"github.com/gpstunnel/gpstunnel/internal/featureflags"
	"github.com/gpstunnel/gpstunnel/internal/maps"
	"github.com/gpstunnel/gpstunnel/internal/maps/googlemaps"
	"github.com/gpstunnel/gpstunnel/internal/provider/resilience"
	"github.com/gpstunnel/gpstunnel/internal/telemetry"
	"github.com/gpstunnel/gpstunnel/internal/tour"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const serviceName = "gpstunnel-api"

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server stopped")
}

func run(log zerolog.Logger) error {
	log.Info().Str("build_time", BuildTime).Msg("starting gpstunnel API")

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.IsProduction() {
		log = log.Level(zerolog.InfoLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.Telemetry.Enabled {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		return err
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	if cfg.Tour.SeedOnStart {
		seed, err := tour.LoadSeed(cfg.Tour.SeedFile)
		if err != nil {
			return err
		}
		if _, err := tour.Seed(ctx, st.catalog, seed, log); err != nil {
			return err
		}
	}

	publisher, eventsCheck, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()
	if eventsCheck != nil {
		st.checks[cfg.EventsBackend] = eventsCheck
	}

	flagService := featureflags.NewService(featureflags.ServiceConfig{
		Repository: st.flags,
		Logger:     log,
		CacheTTL:   time.Minute,
	})

	tourService := tour.NewService(tour.ServiceConfig{
		Catalog:            st.catalog,
		Sessions:           st.sessions,
		Publisher:          publisher,
		Logger:             log,
		DefaultLanguage:    cfg.Tour.DefaultLanguage,
		MaxConflictRetries: cfg.Tour.MaxConflictRetries,
	})

	registry := resilience.NewRegistry()
	if cfg.Maps.APIKey == "" {
		log.Warn().Msg("GOOGLE_MAPS_API_KEY is not set, maps requests will be rejected by the provider")
	}
	mapsClient := googlemaps.NewClient(googlemaps.ClientConfig{
		APIKey:     cfg.Maps.APIKey,
		BaseURL:    cfg.Maps.BaseURL,
		Timeout:    cfg.Maps.Timeout,
		MaxRetries: uint64(cfg.Maps.MaxRetries), //nolint:gosec // validated non-negative
		Registry:   registry,
		Logger:     log,
	})
	mapsService := maps.NewService(maps.ServiceConfig{
		Provider: mapsClient,
		Flags:    flagService,
		Logger:   log,
		CacheTTL: cfg.Maps.CacheTTL,
	})

	signingKey := cfg.Auth.SigningKey
	if signingKey == "" {
		if cfg.IsProduction() {
			return errors.New("JWT_SIGNING_KEY is required in production")
		}
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default JWT signing key - not secure for production")
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		SigningKey: signingKey,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		RequireTLS:         cfg.RequireTLS,
		CORSOrigins:        cfg.CORSOrigins,
		TourService:        tourService,
		MapsService:        mapsService,
		FeatureFlagService: flagService,
		TokenValidator:     jwtService,
		ProviderRegistry:   registry,
		HealthChecks:       st.checks,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("store", cfg.StoreBackend).
			Str("events", cfg.EventsBackend).
			Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
