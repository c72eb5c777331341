package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/utafrali/storefront/internal/backend"

var backendCallDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "storefront_backend_call_duration_seconds",
		Help:    "Duration of calls to the product/recommendation backend",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"operation", "outcome"},
)

// traceCall starts a client span for a backend operation. The returned
// function must be called with the operation's error when it completes.
// Calls slower than slowThreshold are logged as warnings.
func (c *Client) traceCall(ctx context.Context, operation, method, path string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "backend."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		outcome := callOutcome(err)
		backendCallDuration.WithLabelValues(operation, outcome).Observe(elapsed.Seconds())

		if err != nil && outcome != "canceled" {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("storefront.outcome", outcome))
		span.End()

		if c.slowThreshold > 0 && elapsed >= c.slowThreshold {
			c.logger.WarnContext(ctx, "slow backend call",
				slog.String("operation", operation),
				slog.Duration("duration", elapsed),
				slog.String("outcome", outcome),
			)
		}
	}
}

func callOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
