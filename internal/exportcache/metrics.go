package exportcache

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bjjsocial/bjjsocial/internal/exporter"
)

const meterName = "github.com/bjjsocial/bjjsocial/internal/exportcache"

// Metrics holds cache lookup instruments.
type Metrics struct {
	lookupDuration metric.Float64Histogram
	cacheHit       metric.Int64Counter
	cacheMiss      metric.Int64Counter
}

// NewMetrics creates cache instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	lookupDuration, err := meter.Float64Histogram(
		"exportcache.lookup.duration",
		metric.WithDescription("Duration of export cache lookups in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	cacheHit, err := meter.Int64Counter(
		"exportcache.hit",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMiss, err := meter.Int64Counter(
		"exportcache.miss",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		lookupDuration: lookupDuration,
		cacheHit:       cacheHit,
		cacheMiss:      cacheMiss,
	}, nil
}

// Instrumented wraps a Cache and records lookups.
type Instrumented struct {
	Cache
	backend string
	metrics *Metrics
}

// WithMetrics wraps c so every Get records a hit or miss for backend.
func WithMetrics(c Cache, backend string, m *Metrics) *Instrumented {
	return &Instrumented{Cache: c, backend: backend, metrics: m}
}

// Get delegates to the wrapped cache and records the outcome.
func (i *Instrumented) Get(ctx context.Context, key string) (exporter.File, bool, error) {
	start := time.Now()
	f, ok, err := i.Cache.Get(ctx, key)

	attrs := []attribute.KeyValue{attribute.String("cache.backend", i.backend)}
	if err != nil {
		attrs = append(attrs, attribute.Bool("error", true))
	}
	i.metrics.lookupDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))

	if ok {
		i.metrics.cacheHit.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		i.metrics.cacheMiss.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	return f, ok, err
}
