package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Gorev/internal/domain/token"
)

type TokenRepo struct{ db *DB }

func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

var _ token.Repo = (*TokenRepo)(nil)

const (
	qTokenInsert = `
INSERT INTO notification_tokens (user_id, token, device_type, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id;`

	// Held until the surrounding transaction ends. Outside a transaction it is
	// released as soon as the statement's implicit transaction commits.
	qTokenLockUser = `
SELECT pg_advisory_xact_lock(hashtextextended($1, 0));`

	qTokenDeleteByUser = `
DELETE FROM notification_tokens WHERE user_id = $1;`

	qTokenListByUser = `
SELECT id, user_id, token, device_type, created_at, updated_at
FROM notification_tokens
WHERE user_id = $1
ORDER BY created_at, id;`
)

func (r *TokenRepo) Insert(ctx context.Context, t *token.Token) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).
		QueryRow(ctx, qTokenInsert, t.UserID, t.Token, string(t.DeviceType), t.CreatedAt, t.UpdatedAt).
		Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert token: %w", mapErr(err))
	}
	return nil
}

// LockUser serializes token writers of one user for the rest of the current
// transaction.
func (r *TokenRepo) LockUser(ctx context.Context, userID string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if _, err := r.db.execQueryer(ctx).Exec(ctx, qTokenLockUser, userID); err != nil {
		return fmt.Errorf("lock user tokens: %w", mapErr(err))
	}
	return nil
}

func (r *TokenRepo) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qTokenDeleteByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("delete tokens: %w", mapErr(err))
	}
	return tag.RowsAffected(), nil
}

func (r *TokenRepo) ListByUser(ctx context.Context, userID string) ([]*token.Token, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qTokenListByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []*token.Token
	for rows.Next() {
		var (
			t  token.Token
			dt string
		)
		if err := rows.Scan(&t.ID, &t.UserID, &t.Token, &dt, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		t.DeviceType = token.DeviceType(dt)
		out = append(out, &t)
	}
	return out, rows.Err()
}
