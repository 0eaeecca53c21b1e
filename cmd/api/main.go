// Package main provides the entrypoint for the BJJ Social export API server.
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

	"github.com/bjjsocial/bjjsocial/internal/api"
	"github.com/bjjsocial/bjjsocial/internal/api/handler"
	"github.com/bjjsocial/bjjsocial/internal/api/middleware"
	"github.com/bjjsocial/bjjsocial/internal/app"
	"github.com/bjjsocial/bjjsocial/internal/config"
	"github.com/bjjsocial/bjjsocial/internal/telemetry"
	"github.com/bjjsocial/bjjsocial/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "bjjsocial-export-api"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting BJJ Social export API")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.AppEnv,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.OTelEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics")
	}

	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize export components")
	}
	defer deps.Close()

	cache, cacheCheck, closeCache, err := app.NewCache(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize export cache")
	}
	defer closeCache()

	checks := deps.Checks
	if cacheCheck != nil {
		checks = append(checks, *cacheCheck)
	}

	apiKeys := middleware.ParseAPIKeys(cfg.APIKeys)
	if len(apiKeys) == 0 {
		log.Warn().Msg("API_KEYS not set - batch exports and status are unauthenticated")
	}

	exportCfg := handler.ExportHandlerConfig{
		Exporter: deps.Exporter,
		Source:   deps.Source,
		Cache:    cache,
		CacheTTL: cfg.CacheTTL,
		Storage:  deps.Storage,
	}

	if cfg.PubSubEnabled() {
		publisher, pubErr := worker.NewPublisher(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
		if pubErr != nil {
			log.Fatal().Err(pubErr).Msg("failed to create job publisher")
		}
		defer func() {
			if closeErr := publisher.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close job publisher")
			}
		}()
		exportCfg.Publisher = publisher
		log.Info().
			Str("project_id", cfg.PubSubProjectID).
			Str("topic", cfg.PubSubTopic).
			Msg("batch exports are queued")
	}

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		RequireTLS:  cfg.RequireTLS,
		APIKeys:     apiKeys,
		Export:      exportCfg,
		Ops: handler.OpsHandlerConfig{
			Checks:    checks,
			Upstreams: deps.Upstreams,
		},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("source", cfg.Source).
			Str("sink", cfg.ExportSink).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}
