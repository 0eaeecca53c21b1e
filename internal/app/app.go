// Package app assembles the components shared by the API server and the
// batch worker from configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bjjsocial/bjjsocial/internal/api/handler"
	"github.com/bjjsocial/bjjsocial/internal/community"
	"github.com/bjjsocial/bjjsocial/internal/community/restapi"
	"github.com/bjjsocial/bjjsocial/internal/config"
	"github.com/bjjsocial/bjjsocial/internal/database"
	"github.com/bjjsocial/bjjsocial/internal/exportcache"
	"github.com/bjjsocial/bjjsocial/internal/exporter"
	"github.com/bjjsocial/bjjsocial/internal/provider/resilience"
	"github.com/bjjsocial/bjjsocial/internal/sink"
)

// Deps are the wired components. Close releases them.
type Deps struct {
	Source    community.Source
	Storage   exporter.Sink
	Exporter  *exporter.Exporter
	Upstreams *resilience.Registry

	// Checks test the configured backends for readiness.
	Checks []handler.Check

	closers []func()
}

// Build connects the community source, the storage sink and the exporter.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Deps, error) {
	d := &Deps{Upstreams: resilience.NewRegistry()}

	if err := d.buildSource(ctx, cfg, log); err != nil {
		d.Close()
		return nil, err
	}

	storage, err := NewStorage(cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Storage = storage

	metrics, err := exporter.NewMetrics()
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create exporter metrics: %w", err)
	}

	d.Exporter, err = exporter.New(exporter.Config{
		Sink:       storage,
		Logger:     log,
		Location:   cfg.Location,
		BatchDelay: batchDelay(cfg),
		Metrics:    metrics,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return d, nil
}

// Close releases connections in reverse order of creation.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func (d *Deps) buildSource(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	switch cfg.Source {
	case config.SourcePostgres:
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		d.closers = append(d.closers, pool.Close)
		d.Source = community.NewPostgresSource(pool)
		d.Checks = append(d.Checks, handler.Check{Name: "postgres", Kind: "source", Run: pool.Ping})
		log.Info().
			Str("host", cfg.Database.Host).
			Int("port", cfg.Database.Port).
			Str("database", cfg.Database.Database).
			Msg("database connected")

	case config.SourceREST:
		d.Source = restapi.NewClient(restapi.ClientConfig{
			BaseURL:  cfg.APIBaseURL,
			Registry: d.Upstreams,
			Logger:   log,
		})
		log.Info().Str("base_url", cfg.APIBaseURL).Msg("using platform REST API")

	case config.SourceMemory:
		d.Source = community.NewInMemorySource()
		log.Warn().Msg("using empty in-memory community source")

	default:
		return fmt.Errorf("%w: SOURCE %q", config.ErrInvalidConfig, cfg.Source)
	}
	return nil
}

// NewStorage creates the sink batch exports are delivered into.
func NewStorage(cfg *config.Config) (exporter.Sink, error) {
	switch cfg.ExportSink {
	case config.SinkDir:
		return sink.NewDir(cfg.ExportDir), nil
	case config.SinkCloudinary:
		return sink.NewCloudinary(sink.CloudinaryConfig{
			URL:    cfg.CloudinaryURL,
			Folder: cfg.UploadFolder,
		})
	default:
		return nil, fmt.Errorf("%w: EXPORT_SINK %q", config.ErrInvalidConfig, cfg.ExportSink)
	}
}

// NewCache creates the document cache: Redis when REDIS_URL is set,
// process memory otherwise. The returned check is nil for memory.
func NewCache(ctx context.Context, cfg *config.Config) (exportcache.Cache, *handler.Check, func(), error) {
	metrics, err := exportcache.NewMetrics()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create cache metrics: %w", err)
	}

	if cfg.RedisURL == "" {
		return exportcache.WithMetrics(exportcache.NewMemory(), "memory", metrics), nil, func() {}, nil
	}

	cache, client, err := exportcache.NewRedisFromURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	check := &handler.Check{
		Name: "redis",
		Kind: "cache",
		Run: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
	}
	closeFn := func() { _ = client.Close() }
	return exportcache.WithMetrics(cache, "redis", metrics), check, closeFn, nil
}

// batchDelay maps a configured zero delay to the exporter's "no delay".
func batchDelay(cfg *config.Config) time.Duration {
	if cfg.BatchDelay == 0 {
		return -1
	}
	return cfg.BatchDelay
}
