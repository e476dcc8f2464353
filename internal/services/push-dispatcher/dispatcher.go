package dispatcher

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/push"
)

var (
	mDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "push_dispatcher_intents_total",
		Help: "Intents handled by result: sent, partial, failed, no_tokens, duplicate.",
	}, []string{"result"})
	mTokens = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "push_dispatcher_tokens_per_intent",
		Help:    "Resolved tokens per intent.",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	})
)

type TokenSource interface {
	TokensFor(ctx context.Context, userID string) ([]string, error)
}

// Dispatcher turns one intent into at most one provider send per token.
type Dispatcher struct {
	Tokens      TokenSource
	Claims      notification.ClaimRepo
	Out         notification.Sender
	MaxParallel int
	Log         *zap.Logger
}

// Dispatch resolves the recipient's tokens, claims the intent and fans out.
// The claim makes a redelivered event a no-op, so no token is pushed twice for
// the same intent. Failed sends are reported, never retried. The returned
// error comes from the token lookup or the claim, both before any send, so the
// consumer can safely run Dispatch again.
func (d *Dispatcher) Dispatch(ctx context.Context, ev notification.Created) (notification.Report, error) {
	ctx, span := otel.Tracer("push.dispatcher").Start(ctx, "dispatch")
	defer span.End()
	span.SetAttributes(attribute.String("notification.id", ev.NotificationID))

	log := obs.WithTrace(ctx, d.Log).With(
		zap.String("notification_id", ev.NotificationID),
		zap.String("user_id", ev.UserID),
	)

	tokens, err := d.Tokens.TokensFor(ctx, ev.UserID)
	if err != nil {
		span.RecordError(err)
		return notification.Report{}, fmt.Errorf("resolve tokens: %w", err)
	}
	mTokens.Observe(float64(len(tokens)))
	if len(tokens) == 0 {
		mDispatched.WithLabelValues("no_tokens").Inc()
		log.Debug("recipient has no registered device")
		return notification.Report{}, nil
	}

	first, err := d.Claims.Claim(ctx, ev.NotificationID)
	if err != nil {
		span.RecordError(err)
		return notification.Report{}, fmt.Errorf("claim dispatch: %w", err)
	}
	if !first {
		mDispatched.WithLabelValues("duplicate").Inc()
		log.Info("intent already dispatched; skipping")
		return notification.Report{Skipped: true}, nil
	}

	rep := push.FanOut(ctx, d.Out, tokens, ev.Message(), d.MaxParallel, log)
	span.SetAttributes(attribute.Int("push.sent", rep.Sent), attribute.Int("push.total", rep.Total))

	if err := d.Claims.Complete(ctx, ev.NotificationID, rep.Sent, rep.Total); err != nil {
		// The sends already happened; only the bookkeeping is lost.
		log.Warn("record dispatch outcome", zap.Error(err))
	}

	switch {
	case rep.Sent == rep.Total:
		mDispatched.WithLabelValues("sent").Inc()
		log.Info("dispatched", zap.Int("sent", rep.Sent), zap.Int("total", rep.Total))
	case rep.Partial():
		mDispatched.WithLabelValues("partial").Inc()
		log.Warn("partial dispatch", zap.Int("sent", rep.Sent), zap.Int("total", rep.Total))
	default:
		mDispatched.WithLabelValues("failed").Inc()
		log.Warn("no token accepted the push", zap.Int("total", rep.Total))
	}
	return rep, nil
}
