package push

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/obs"
)

var sendsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "push_sends_total",
	Help: "Provider sends by outcome.",
}, []string{"outcome"})

// FanOut sends m to every token concurrently, at most maxParallel at a time.
// Every token is attempted exactly once and a failure never cancels the rest;
// results keep the order of tokens.
func FanOut(ctx context.Context, s notification.Sender, tokens []string, m notification.Message, maxParallel int, log *zap.Logger) notification.Report {
	results := make([]notification.Result, len(tokens))
	if len(tokens) == 0 {
		return notification.NewReport(results)
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := pool.New()
	if maxParallel > 0 {
		p = p.WithMaxGoroutines(maxParallel)
	}
	for i, tok := range tokens {
		p.Go(func() {
			err := s.Send(ctx, tok, m)
			results[i] = notification.Result{Token: tok, Delivered: err == nil, Err: err}
			sendsTotal.WithLabelValues(outcome(err)).Inc()
			if err != nil {
				obs.WithTrace(ctx, log).Warn("push send failed", obs.TokenPrefix(tok), zap.Error(err))
			}
		})
	}
	p.Wait()

	return notification.NewReport(results)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "delivered"
	case errors.Is(err, notification.ErrTokenInvalid):
		return "token_invalid"
	default:
		return "provider_error"
	}
}
