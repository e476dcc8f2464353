package notification

import (
	"context"
	"time"
)

type Repo interface {
	Create(ctx context.Context, n *Intent) error
	MarkRead(ctx context.Context, userID, id string) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*Intent, error)
}

// ClaimRepo guards against dispatching the same intent twice.
type ClaimRepo interface {
	// Claim returns false when the intent was claimed before.
	Claim(ctx context.Context, intentID string) (bool, error)
	Complete(ctx context.Context, intentID string, sent, total int) error
}

// Sender delivers one message to one registration token.
type Sender interface {
	Send(ctx context.Context, token string, m Message) error
}

type Clock interface {
	Now() time.Time
}
