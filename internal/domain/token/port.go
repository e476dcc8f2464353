package token

import "context"

type Repo interface {
	// LockUser blocks other writers of the user's tokens until the caller's
	// transaction ends.
	LockUser(ctx context.Context, userID string) error
	Insert(ctx context.Context, t *Token) error
	DeleteByUser(ctx context.Context, userID string) (int64, error)
	ListByUser(ctx context.Context, userID string) ([]*Token, error)
}
