package authcore

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Operation names used as metric labels and span names.
const (
	OpLogin                    = "login"
	OpRefresh                  = "refresh"
	OpLogout                   = "logout"
	OpAuthenticate             = "authenticate"
	OpSignup                   = "signup"
	OpRequestEmailVerification = "request_email_verification"
	OpConsumeEmailVerification = "consume_email_verification"
	OpSocialLogin              = "social_login"
)

const outcomeSuccess = "success"

var tracer = otel.Tracer("github.com/MrEthical07/authcore")

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewMetrics registers the engine collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_operations_total",
			Help: "Engine operations by outcome; outcome is success or an error kind",
		}, []string{"operation", "outcome"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "authcore_operation_duration_seconds",
			Help:    "Engine operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) observe(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if err != nil {
		outcome = string(ErrorKindOf(err))
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// startOp opens a span for op. The returned func records the outcome on the
// span and in the metrics; it must be called exactly once.
func (e *Engine) startOp(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "authcore."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.SetAttributes(attribute.String("authcore.error_kind", string(ErrorKindOf(err))))
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		elapsed := time.Since(start)
		e.metrics.observe(op, elapsed, err)
		e.otel.observe(ctx, op, elapsed, err)
	}
}
