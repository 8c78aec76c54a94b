// Package main provides the entrypoint for the progress event worker.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpstunnel/gpstunnel/internal/config"
	"github.com/gpstunnel/gpstunnel/internal/database"
	"github.com/gpstunnel/gpstunnel/internal/events"
	"github.com/gpstunnel/gpstunnel/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", "gpstunnel-worker").
		Str("version", Version).
		Logger()

	if err := run(log); err != nil {
		log.Fatal().Err(err).Msg("worker failed")
	}
	log.Info().Msg("worker stopped")
}

func run(log zerolog.Logger) error {
	log.Info().Str("build_time", BuildTime).Msg("starting progress event worker")

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	if cfg.PubSub.ProjectID == "" {
		return errors.New("PUBSUB_PROJECT_ID is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	sinks := worker.MultiSink{worker.NewPostgresSink(pool)}
	if cfg.Worker.RelayToRedis {
		client, err := database.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		relay := events.NewRedisPublisher(client)
		defer relay.Close()
		sinks = append(sinks, worker.NewRelaySink(relay))
		log.Info().Msg("relaying progress events to redis")
	}

	processor := worker.NewProcessor(sinks, cfg.Worker.StoreTimeout, log)

	handler, err := worker.NewPubSubHandler(ctx, worker.Config{
		ProjectID:        cfg.PubSub.ProjectID,
		SubscriptionName: cfg.PubSub.Subscription,
		StoreTimeout:     cfg.Worker.StoreTimeout,
	}, processor, log)
	if err != nil {
		return err
	}
	defer handler.Close()

	// Cloud Run expects the worker to serve a health endpoint.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
			stop()
		}
	}()

	receiveErr := handler.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	if receiveErr != nil && !errors.Is(receiveErr, context.Canceled) {
		return fmt.Errorf("receive: %w", receiveErr)
	}
	return nil
}
