package worker

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/bjjsocial/bjjsocial/internal/worker"

// Subscriber pulls export jobs from a Pub/Sub subscription and hands each
// message body to an ExportJob.
type Subscriber struct {
	client       *pubsub.Client
	sub          *pubsub.Subscriber
	subscription string
	job          *ExportJob
	log          zerolog.Logger
}

// SubscriberConfig configures NewSubscriber.
type SubscriberConfig struct {
	ProjectID    string
	Subscription string
	Config       Config
	Job          *ExportJob
	Logger       zerolog.Logger
}

// NewSubscriber connects to Pub/Sub. Flow control comes from Config.
func NewSubscriber(ctx context.Context, cfg SubscriberConfig) (*Subscriber, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	settings := cfg.Config.withDefaults()
	sub := client.Subscriber(cfg.Subscription)
	sub.ReceiveSettings.MaxOutstandingMessages = settings.MaxOutstandingMessages
	sub.ReceiveSettings.MaxExtension = settings.MaxExtension

	return &Subscriber{
		client:       client,
		sub:          sub,
		subscription: cfg.Subscription,
		job:          cfg.Job,
		log:          cfg.Logger.With().Str("component", "subscriber").Logger(),
	}, nil
}

// Receive processes messages until ctx is done or the stream fails.
func (s *Subscriber) Receive(ctx context.Context) error {
	s.log.Info().Str("subscription", s.subscription).Msg("receiving export jobs")
	return s.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.process(ctx, msg) == Nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close closes the Pub/Sub client.
func (s *Subscriber) Close() error {
	return s.client.Close()
}

func (s *Subscriber) process(ctx context.Context, msg *pubsub.Message) Disposition {
	ctx, span := otel.Tracer(tracerName).Start(MessageContext(ctx, msg), "export job",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "gcp_pubsub"),
			attribute.String("messaging.destination.subscription.name", s.subscription),
			attribute.String("messaging.message.id", msg.ID),
			attribute.String("export.job.id", msg.Attributes["job_id"]),
			attribute.String("export.job.type", msg.Attributes["job_type"]),
		),
	)
	defer span.End()

	log := s.log.With().
		Str("message_id", msg.ID).
		Str("job_id", msg.Attributes["job_id"]).
		Logger()
	if msg.DeliveryAttempt != nil {
		log = log.With().Int("delivery_attempt", *msg.DeliveryAttempt).Logger()
		span.SetAttributes(attribute.Int("messaging.gcp_pubsub.message.delivery_attempt", *msg.DeliveryAttempt))
	}

	start := time.Now()
	disposition := s.job.Handle(ctx, msg.Data)
	span.SetAttributes(attribute.String("export.job.disposition", disposition.String()))
	if disposition == Nack {
		span.SetStatus(codes.Error, "job nacked")
	}

	log.Info().
		Str("disposition", disposition.String()).
		Dur("queued", start.Sub(msg.PublishTime)).
		Dur("duration", time.Since(start)).
		Msg("export job handled")
	return disposition
}

// MessageContext returns ctx carrying the trace context the publisher
// stored in the message attributes.
func MessageContext(ctx context.Context, msg *pubsub.Message) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.Attributes))
}
