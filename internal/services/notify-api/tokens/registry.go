package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/domain/token"
	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/repository/postgres"
)

var (
	ErrEmptyUser  = errors.New("user id is required")
	ErrEmptyToken = errors.New("token is required")
	ErrDeviceType = errors.New("unknown device type")
)

var (
	registered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_api_tokens_registered_total",
		Help: "Registration tokens stored.",
	})
	revoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notify_api_tokens_revoked_total",
		Help: "Registration tokens removed by revoke or replacement.",
	})
)

// Registry owns the token lifecycle: issue, replace, revoke.
type Registry struct {
	Tx    postgres.Transactor
	Repo  token.Repo
	Clock notification.Clock
	Log   *zap.Logger
}

// Register replaces every token the user has with tok. Delete and insert share
// one transaction, so a failure leaves the previous tokens untouched. The
// per-user lock taken first keeps concurrent registrations from each deleting
// before the other inserts.
func (r *Registry) Register(ctx context.Context, userID string, dt token.DeviceType, tok string) error {
	switch {
	case userID == "":
		return ErrEmptyUser
	case tok == "":
		return ErrEmptyToken
	case !dt.Valid():
		return fmt.Errorf("%w: %q", ErrDeviceType, dt)
	}

	now := r.Clock.Now().UTC()
	var removed int64
	err := r.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := r.Repo.LockUser(ctx, userID); err != nil {
			return err
		}
		n, err := r.Repo.DeleteByUser(ctx, userID)
		if err != nil {
			return err
		}
		removed = n
		return r.Repo.Insert(ctx, &token.Token{
			UserID:     userID,
			Token:      tok,
			DeviceType: dt,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		return fmt.Errorf("%w: register token: %w", notification.ErrStoreWrite, err)
	}

	registered.Inc()
	revoked.Add(float64(removed))
	obs.WithTrace(ctx, r.Log).Info("token registered",
		zap.String("user_id", userID),
		zap.String("device_type", string(dt)),
		obs.TokenPrefix(tok),
		zap.Int64("replaced", removed),
	)
	return nil
}

// Revoke removes every token of the user. Having none is not an error.
func (r *Registry) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUser
	}
	var n int64
	err := r.Tx.WithTx(ctx, func(ctx context.Context) error {
		if err := r.Repo.LockUser(ctx, userID); err != nil {
			return err
		}
		var err error
		n, err = r.Repo.DeleteByUser(ctx, userID)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: revoke tokens: %w", notification.ErrStoreWrite, err)
	}
	revoked.Add(float64(n))
	obs.WithTrace(ctx, r.Log).Info("tokens revoked", zap.String("user_id", userID), zap.Int64("count", n))
	return nil
}

// TokensFor lists the user's tokens oldest first.
func (r *Registry) TokensFor(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("tokens for user: %w", err)
	}
	out := make([]string, 0, len(rows))
	for _, t := range rows {
		out = append(out, t.Token)
	}
	return out, nil
}
