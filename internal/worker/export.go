package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bjjsocial/bjjsocial/internal/community"
	"github.com/bjjsocial/bjjsocial/internal/exporter"
	"github.com/bjjsocial/bjjsocial/internal/sink"
)

// Disposition tells the subscriber whether to ack or nack a message.
type Disposition int

const (
	// Ack removes the message from the subscription.
	Ack Disposition = iota
	// Nack asks for redelivery.
	Nack
)

func (d Disposition) String() string {
	if d == Nack {
		return "nack"
	}
	return "ack"
}

// ExportJob runs export jobs against an Exporter whose sink is the
// configured storage.
type ExportJob struct {
	config   Config
	exporter *exporter.Exporter
	source   community.Source
	logger   zerolog.Logger

	metrics *JobMetrics
}

// JobMetrics tracks job statistics.
type JobMetrics struct {
	mu sync.RWMutex

	TotalJobs          int64 `json:"totalJobs"`
	SuccessfulJobs     int64 `json:"successfulJobs"`
	FailedJobs         int64 `json:"failedJobs"`
	DocumentsDelivered int64 `json:"documentsDelivered"`
	DocumentsSkipped   int64 `json:"documentsSkipped"`

	LastJobAt       time.Time     `json:"lastJobAt"`
	LastJobDuration time.Duration `json:"lastJobDurationNs"`
}

// ExportJobConfig holds configuration for creating an ExportJob.
type ExportJobConfig struct {
	Config   Config
	Exporter *exporter.Exporter

	// Source, when set, is queried by health_check jobs.
	Source community.Source

	Logger zerolog.Logger
}

// NewExportJob creates a new export job processor.
func NewExportJob(cfg ExportJobConfig) *ExportJob {
	return &ExportJob{
		config:   cfg.Config.withDefaults(),
		exporter: cfg.Exporter,
		source:   cfg.Source,
		logger:   cfg.Logger.With().Str("component", "export-job").Logger(),
		metrics:  &JobMetrics{},
	}
}

// ExportResult contains the result of a batch job.
type ExportResult struct {
	JobID     string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Items     int
	exporter.BatchResult
	Err error
}

// Run executes a batch_export job. Delivery failures are reported in the
// result; the batch keeps going past them.
func (j *ExportJob) Run(ctx context.Context, job Job) *ExportResult {
	ctx, cancel := context.WithTimeout(ctx, j.config.JobTimeout)
	defer cancel()

	result := &ExportResult{
		JobID:     job.JobID,
		StartTime: time.Now(),
		Items:     len(job.Items),
	}

	logger := j.logger.With().Str("job_id", job.JobID).Logger()
	logger.Info().Int("items", len(job.Items)).Msg("starting batch export job")

	result.BatchResult, result.Err = j.exporter.Batch(ctx, job.Items, job.Options, func(current, total int) {
		logger.Debug().Int("current", current).Int("total", total).Msg("batch progress")
	})

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	j.record(result)

	event := logger.Info()
	if result.Err != nil {
		event = logger.Warn().Err(result.Err)
	}
	event.
		Dur("duration", result.Duration).
		Int("delivered", result.Delivered).
		Int("skipped", result.Skipped).
		Int("failed", result.Failed).
		Msg("batch export job completed")

	return result
}

// HealthCheck renders a test document into memory and, when a source is
// configured, a one-school rankings document from live data.
func (j *ExportJob) HealthCheck(ctx context.Context) error {
	scratch := sink.NewMemory()
	e := j.exporter.WithSink(scratch)

	if err := e.ExportCustomContent(ctx, "Health Check", "<p>ok</p>", exporter.Options{}); err != nil {
		return fmt.Errorf("health check render: %w", err)
	}

	if j.source != nil {
		rankings, err := j.source.SchoolRankings(ctx, community.LeaderboardFilter{Limit: 1})
		if err != nil {
			return fmt.Errorf("health check source: %w", err)
		}
		if err := e.ExportSchoolRankings(ctx, rankings, exporter.Options{}); err != nil {
			return fmt.Errorf("health check render: %w", err)
		}
	}

	if len(scratch.Files()) == 0 {
		return errors.New("health check rendered no documents")
	}
	return nil
}

// Handle processes one message body and decides its disposition. Unknown
// job types are acked so they are not redelivered.
func (j *ExportJob) Handle(ctx context.Context, data []byte) Disposition {
	job, err := ParseJob(data)
	if err != nil {
		j.logger.Error().Err(err).Msg("failed to parse message")
		return Nack
	}

	logger := j.logger.With().Str("job_type", job.JobType).Str("job_id", job.JobID).Logger()

	switch job.JobType {
	case JobTypeBatchExport:
		result := j.Run(ctx, job)
		if result.Err != nil && (result.Delivered == 0 || isContextError(result.Err)) {
			logger.Error().Err(result.Err).Msg("job failed")
			return Nack
		}
		return Ack

	case JobTypeHealthCheck:
		if err := j.HealthCheck(ctx); err != nil {
			logger.Error().Err(err).Msg("job failed")
			return Nack
		}
		logger.Debug().Msg("health check passed")
		return Ack

	default:
		logger.Warn().Msg("unknown job type")
		return Ack
	}
}

// Metrics returns a copy of the job statistics.
func (j *ExportJob) Metrics() JobMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return JobMetrics{
		TotalJobs:          j.metrics.TotalJobs,
		SuccessfulJobs:     j.metrics.SuccessfulJobs,
		FailedJobs:         j.metrics.FailedJobs,
		DocumentsDelivered: j.metrics.DocumentsDelivered,
		DocumentsSkipped:   j.metrics.DocumentsSkipped,
		LastJobAt:          j.metrics.LastJobAt,
		LastJobDuration:    j.metrics.LastJobDuration,
	}
}

func (j *ExportJob) record(result *ExportResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalJobs++
	if result.Err == nil {
		j.metrics.SuccessfulJobs++
	} else {
		j.metrics.FailedJobs++
	}
	j.metrics.DocumentsDelivered += int64(result.Delivered)
	j.metrics.DocumentsSkipped += int64(result.Skipped)
	j.metrics.LastJobAt = result.EndTime
	j.metrics.LastJobDuration = result.Duration
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
