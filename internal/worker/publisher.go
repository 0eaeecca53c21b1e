package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Publisher enqueues export jobs on a Pub/Sub topic.
type Publisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topic     string
}

// NewPublisher creates a publisher for topic.
func NewPublisher(ctx context.Context, projectID, topic string) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &Publisher{
		client:    client,
		publisher: client.Publisher(topic),
		topic:     topic,
	}, nil
}

// Publish sends job and waits for the server to accept it. A missing JobID
// is generated. It returns the job ID.
func (p *Publisher) Publish(ctx context.Context, job Job) (string, error) {
	msg, err := EncodeJob(ctx, &job)
	if err != nil {
		return "", err
	}

	if _, err := p.publisher.Publish(ctx, msg).Get(ctx); err != nil {
		return "", fmt.Errorf("publishing %s job to %s: %w", job.JobType, p.topic, err)
	}
	return job.JobID, nil
}

// Close flushes pending messages and closes the client.
func (p *Publisher) Close() error {
	p.publisher.Stop()
	return p.client.Close()
}

// EncodeJob assigns a job ID when missing and builds the Pub/Sub message.
// The trace context of ctx travels in the message attributes.
func EncodeJob(ctx context.Context, job *Job) (*pubsub.Message, error) {
	if job.JobID == "" {
		job.JobID = "job_" + uuid.NewString()
	}

	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encoding job: %w", err)
	}

	attrs := map[string]string{
		"job_type": job.JobType,
		"job_id":   job.JobID,
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(attrs))

	return &pubsub.Message{Data: data, Attributes: attrs}, nil
}
