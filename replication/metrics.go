package replication

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/greedyvox/netsync/replication"

// Metrics counts frames through the global OTel meter (no-op unless a
// provider is installed). A nil *Metrics is valid and records nothing.
type Metrics struct {
	framesSent     metric.Int64Counter
	bytesSent      metric.Int64Counter
	framesReceived metric.Int64Counter
	framesDropped  metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	m := otel.Meter(instrumentationName)
	var (
		out Metrics
		err error
	)

	out.framesSent, err = m.Int64Counter(
		"netsync.frames.sent",
		metric.WithDescription("Replication frames handed to the transport, per target"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames sent counter: %w", err)
	}

	out.bytesSent, err = m.Int64Counter(
		"netsync.bytes.sent",
		metric.WithDescription("Encoded replication bytes handed to the transport, per target"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating bytes sent counter: %w", err)
	}

	out.framesReceived, err = m.Int64Counter(
		"netsync.frames.received",
		metric.WithDescription("Replication frames decoded and applied"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames received counter: %w", err)
	}

	out.framesDropped, err = m.Int64Counter(
		"netsync.frames.dropped",
		metric.WithDescription("Replication frames discarded on receive"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames dropped counter: %w", err)
	}

	return &out, nil
}

func (m *Metrics) sent(kind string, size, targets int) {
	if m == nil || targets == 0 {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.framesSent.Add(context.Background(), int64(targets), attrs)
	m.bytesSent.Add(context.Background(), int64(size*targets), attrs)
}

func (m *Metrics) received(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) dropped(kind, reason string) {
	if m == nil {
		return
	}
	m.framesDropped.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("reason", reason),
	))
}
