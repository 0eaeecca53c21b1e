// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/bjjsocial/bjjsocial/internal/database"
)

// Community data backends.
const (
	SourcePostgres = "postgres"
	SourceREST     = "rest"
	SourceMemory   = "memory"
)

// Storage sinks for batch exports.
const (
	SinkDir        = "dir"
	SinkCloudinary = "cloudinary"
)

// ErrInvalidConfig is returned when a variable holds an unusable value.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds configuration shared by the API server and the worker.
type Config struct {
	AppEnv string
	Port   string

	OTelEnabled  bool
	OTLPEndpoint string

	// Source selects where community data is read from.
	Source     string
	APIBaseURL string
	Database   database.Config

	// RedisURL enables the Redis document cache. Empty uses process memory.
	RedisURL      string
	CacheTTL      time.Duration
	RequireTLS    bool
	APIKeys       string
	ExportSink    string
	ExportDir     string
	CloudinaryURL string
	UploadFolder  string
	BatchDelay    time.Duration
	Location      *time.Location

	PubSubProjectID    string
	PubSubTopic        string
	PubSubSubscription string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:       getEnv("APP_ENV", "development"),
		Port:         getEnv("APP_PORT", "8080"),
		OTelEnabled:  os.Getenv("OTEL_ENABLED") == "true",
		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		Source:     strings.ToLower(getEnv("SOURCE", SourcePostgres)),
		APIBaseURL: getEnv("BJJ_API_BASE_URL", "https://bjj.social"),
		Database:   database.ConfigFromEnv(),

		RedisURL:      os.Getenv("REDIS_URL"),
		RequireTLS:    os.Getenv("REQUIRE_TLS") == "true",
		APIKeys:       os.Getenv("API_KEYS"),
		ExportSink:    strings.ToLower(getEnv("EXPORT_SINK", SinkDir)),
		ExportDir:     getEnv("EXPORT_DIR", "./exports"),
		CloudinaryURL: os.Getenv("CLOUDINARY_URL"),
		UploadFolder:  getEnv("CLOUDINARY_UPLOAD_FOLDER", "bjj-exports"),

		PubSubProjectID:    os.Getenv("PUBSUB_PROJECT_ID"),
		PubSubTopic:        getEnv("PUBSUB_TOPIC", "export-jobs"),
		PubSubSubscription: getEnv("PUBSUB_SUBSCRIPTION", "export-jobs-worker"),
	}

	var err error
	cfg.CacheTTL, err = parseDuration("EXPORT_CACHE_TTL", "1m")
	if err != nil {
		return nil, err
	}
	cfg.BatchDelay, err = parseDuration("EXPORT_BATCH_DELAY", "100ms")
	if err != nil {
		return nil, err
	}

	tz := getEnv("EXPORT_TIMEZONE", "UTC")
	cfg.Location, err = time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: EXPORT_TIMEZONE %q: %v", ErrInvalidConfig, tz, err)
	}

	switch cfg.Source {
	case SourcePostgres, SourceREST, SourceMemory:
	default:
		return nil, fmt.Errorf("%w: SOURCE %q", ErrInvalidConfig, cfg.Source)
	}
	switch cfg.ExportSink {
	case SinkDir, SinkCloudinary:
	default:
		return nil, fmt.Errorf("%w: EXPORT_SINK %q", ErrInvalidConfig, cfg.ExportSink)
	}

	return cfg, nil
}

// PubSubEnabled reports whether batch jobs go through Pub/Sub.
func (c *Config) PubSubEnabled() bool {
	return c.PubSubProjectID != ""
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := getEnv(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidConfig, key, raw, err)
	}
	return d, nil
}
