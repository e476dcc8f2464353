package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NordCoder/Gorev/internal/obs/retry"
)

// JSONHandler decodes each record value into a fresh T before calling handle.
// Undecodable values fail permanently and are not retried.
func JSONHandler[T any](handle func(ctx context.Context, key []byte, v *T) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		v := new(T)
		if err := json.Unmarshal(value, v); err != nil {
			return fmt.Errorf("decode %T: %w: %w", v, retry.ErrPermanent, err)
		}
		return handle(ctx, key, v)
	}
}
