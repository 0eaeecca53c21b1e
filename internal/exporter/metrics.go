package exporter

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/bjjsocial/bjjsocial/internal/exporter"

// Metrics holds the exporter's OpenTelemetry instruments.
type Metrics struct {
	documentsTotal   metric.Int64Counter
	documentSize     metric.Int64Histogram
	deliveryFailures metric.Int64Counter
}

// NewMetrics creates exporter instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	documentsTotal, err := meter.Int64Counter(
		"exporter.documents.total",
		metric.WithDescription("Number of documents delivered"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	documentSize, err := meter.Int64Histogram(
		"exporter.document.size",
		metric.WithDescription("Size of rendered documents in bytes"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	deliveryFailures, err := meter.Int64Counter(
		"exporter.delivery.failures",
		metric.WithDescription("Number of documents the sink rejected"),
		metric.WithUnit("{document}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		documentsTotal:   documentsTotal,
		documentSize:     documentSize,
		deliveryFailures: deliveryFailures,
	}, nil
}

func (m *Metrics) recordDelivered(ctx context.Context, kind Kind, size int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("export.kind", string(kind)))
	m.documentsTotal.Add(ctx, 1, attrs)
	m.documentSize.Record(ctx, int64(size), attrs)
}

func (m *Metrics) recordFailure(ctx context.Context, kind Kind) {
	if m == nil {
		return
	}
	m.deliveryFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("export.kind", string(kind))))
}
