package worker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bjjsocial/bjjsocial/internal/exporter"
)

// ErrInvalidJob is returned for messages that cannot be parsed.
var ErrInvalidJob = errors.New("invalid job message")

// Job is the Pub/Sub message body of an export job.
type Job struct {
	JobType string               `json:"job_type"`
	JobID   string               `json:"job_id,omitempty"`
	Options exporter.Options     `json:"options"`
	Items   []exporter.BatchItem `json:"items,omitempty"`
}

// NewBatchJob builds a batch_export job.
func NewBatchJob(id string, items []exporter.BatchItem, opts exporter.Options) Job {
	return Job{
		JobType: JobTypeBatchExport,
		JobID:   id,
		Options: opts,
		Items:   items,
	}
}

// ParseJob decodes a message body.
func ParseJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if job.JobType == "" {
		return Job{}, fmt.Errorf("%w: missing job_type", ErrInvalidJob)
	}
	return job, nil
}
