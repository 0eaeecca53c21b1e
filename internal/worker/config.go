// Package worker runs export jobs delivered over Pub/Sub.
package worker

import (
	"time"
)

// Job types carried in the job_type field.
const (
	JobTypeBatchExport = "batch_export"
	JobTypeHealthCheck = "health_check"
)

// Config holds configuration for export job processing.
type Config struct {
	// JobTimeout bounds a single job, including all batch delays.
	// Default: 10 minutes
	JobTimeout time.Duration

	// MaxOutstandingMessages caps messages processed concurrently.
	// Default: 10
	MaxOutstandingMessages int

	// MaxExtension is how long a message's ack deadline may be extended.
	// Default: 10 minutes
	MaxExtension time.Duration
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		JobTimeout:             10 * time.Minute,
		MaxOutstandingMessages: 10,
		MaxExtension:           10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.JobTimeout <= 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.MaxOutstandingMessages <= 0 {
		c.MaxOutstandingMessages = d.MaxOutstandingMessages
	}
	if c.MaxExtension <= 0 {
		c.MaxExtension = d.MaxExtension
	}
	return c
}
