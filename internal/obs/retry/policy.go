package retry

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PublishPolicy is used by the outbox relay when handing events to Kafka.
func PublishPolicy(log *zap.Logger) Policy {
	return Policy{
		Name:     "outbox_publish",
		Attempts: 6,
		Backoff:  ExpoJitter{Base: 200 * time.Millisecond, Max: 30 * time.Second, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, ErrPermanent)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("publish retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
		OnExhaust: func(err error) {
			if log != nil && !errors.Is(err, context.Canceled) {
				log.Error("publish retries exhausted", zap.Error(err))
			}
		},
	}
}

// ErrPermanent marks an error that no amount of retrying will fix, such as an
// undecodable payload.
var ErrPermanent = errors.New("permanent failure")

// HandlePolicy retries a consumed record's handler in place. Errors marked
// ErrPermanent are not retried.
func HandlePolicy(attempts int, base, maxWait time.Duration, log *zap.Logger) Policy {
	return Policy{
		Name:     "consume_handle",
		Attempts: attempts,
		Backoff:  ExpoJitter{Base: base, Max: maxWait, Jitter: 0.2},
		Retryable: func(err error) bool {
			return err != nil && !errors.Is(err, ErrPermanent) && !errors.Is(err, context.Canceled)
		},
		OnAttempt: func(i int, err error) {
			if log != nil {
				log.Warn("handler retry", zap.Int("attempt", i+1), zap.Error(err))
			}
		},
	}
}
