package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/NordCoder/Gorev/internal/domain/kafka"
	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/domain/outbox"
	"github.com/NordCoder/Gorev/internal/obs/retry"
)

var (
	outboxHandlerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outbox_handler_latency_seconds",
		Help:    "Latency of outbox handlers including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})
	outboxHandlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_handler_errors_total",
		Help: "Errors in outbox handlers (after retries).",
	}, []string{"kind"})
)

func instrument(kind outbox.Kind, h outbox.KindHandler, pol retry.Policy) outbox.KindHandler {
	tr := otel.Tracer("outbox.handler")
	label := kind.String()
	return func(ctx context.Context, data []byte) error {
		ctx, span := tr.Start(ctx, "outbox.handle "+label)
		defer span.End()

		start := time.Now()
		err := retry.Do(ctx, func() error { return h(ctx, data) }, pol)
		outboxHandlerLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
		if err != nil {
			span.RecordError(err)
			outboxHandlerErrors.WithLabelValues(label).Inc()
		}
		return err
	}
}

// MakeGlobalOutboxHandler routes outbox kinds to their publishers.
func MakeGlobalOutboxHandler(pub kafka.NotificationEvents, pol retry.Policy) outbox.GlobalHandler {
	created := instrument(outbox.KindNotificationCreated, func(ctx context.Context, data []byte) error {
		var ev notification.Created
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("unmarshal notification-created payload: %w: %w", retry.ErrPermanent, err)
		}
		return pub.PublishNotificationCreated(ctx, ev)
	}, pol)

	return func(kind outbox.Kind) (outbox.KindHandler, error) {
		switch kind {
		case outbox.KindNotificationCreated:
			return created, nil
		default:
			return nil, fmt.Errorf("unsupported outbox kind: %d", kind)
		}
	}
}
