package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/NordCoder/Gorev/internal/domain/notification"
)

type NotificationRepo struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

var _ notification.Repo = (*NotificationRepo)(nil)

const (
	qNotifCreate = `
INSERT INTO notifications (user_id, title, body, note_id)
VALUES ($1, $2, $3, $4)
RETURNING id, read, created_at;`

	qNotifMarkRead = `
UPDATE notifications SET read = TRUE
WHERE id = $1 AND user_id = $2;`

	qNotifListByUser = `
SELECT id, user_id, title, body, note_id, read, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2;`
)

func (r *NotificationRepo) Create(ctx context.Context, n *notification.Intent) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).
		QueryRow(ctx, qNotifCreate, n.UserID, n.Title, n.Body, n.NoteID).
		Scan(&n.ID, &n.Read, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", mapErr(err))
	}
	return nil
}

// MarkRead flips the read flag of a recipient's own intent. Ids that are not
// UUIDs cannot name an intent and report ErrNotFound.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qNotifMarkRead, id, userID)
	if err != nil {
		return fmt.Errorf("mark read: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns the user's newest intents first.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*notification.Intent, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.execQueryer(ctx).Query(ctx, qNotifListByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", mapErr(err))
	}
	defer rows.Close()

	var out []*notification.Intent
	for rows.Next() {
		var n notification.Intent
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.NoteID, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
