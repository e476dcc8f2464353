package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Gorev/internal/domain/notification"
)

// DispatchRepo records which intents have been handed to the push provider.
type DispatchRepo struct{ db *DB }

func NewDispatchRepo(db *DB) *DispatchRepo { return &DispatchRepo{db: db} }

var _ notification.ClaimRepo = (*DispatchRepo)(nil)

const (
	qDispatchClaim = `
INSERT INTO dispatches (notification_id)
VALUES ($1)
ON CONFLICT (notification_id) DO NOTHING;`

	qDispatchComplete = `
UPDATE dispatches
SET sent = $2, total = $3, completed_at = now()
WHERE notification_id = $1;`
)

func (r *DispatchRepo) Claim(ctx context.Context, intentID string) (bool, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qDispatchClaim, intentID)
	if err != nil {
		return false, fmt.Errorf("claim dispatch: %w", mapErr(err))
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DispatchRepo) Complete(ctx context.Context, intentID string, sent, total int) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qDispatchComplete, intentID, sent, total); err != nil {
		return fmt.Errorf("complete dispatch: %w", mapErr(err))
	}
	return nil
}
