package authcore

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/MrEthical07/authcore"

// otelMetrics mirrors Metrics onto an OpenTelemetry meter. A nil
// *otelMetrics records nothing.
type otelMetrics struct {
	operations   metric.Int64Counter
	latency      metric.Float64Histogram
	registration metric.Registration
}

func newOTelMetrics(meter metric.Meter, auditDropped func() uint64) (*otelMetrics, error) {
	ops, err := meter.Int64Counter("authcore.operations",
		metric.WithDescription("Engine operations by outcome; outcome is success or an error kind."))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("authcore.operation.duration",
		metric.WithDescription("Engine operation latency."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64ObservableCounter("authcore.audit.dropped",
		metric.WithDescription("Audit events dropped because the buffer was full."))
	if err != nil {
		return nil, err
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(dropped, int64(auditDropped()))
		return nil
	}, dropped)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{operations: ops, latency: latency, registration: registration}, nil
}

func (m *otelMetrics) observe(ctx context.Context, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = string(ErrorKindOf(err))
	}
	m.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
	m.latency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("operation", op)))
}

func (m *otelMetrics) close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	reg := m.registration
	m.registration = nil
	return reg.Unregister()
}
