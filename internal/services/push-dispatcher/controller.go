package dispatcher

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	kafkax "github.com/NordCoder/Gorev/internal/repository/kafka"
)

type consumer interface {
	Consume(ctx context.Context, h kafkax.Handler) error
}

type Controller struct {
	Log *zap.Logger
	Sub consumer
	UC  *Dispatcher
}

var validate = validator.New()

// Handle is the per-record entry point. Malformed events are dropped so they
// do not block the partition.
func (c *Controller) Handle(ctx context.Context, _ []byte, ev *notification.Created) error {
	if err := validate.Struct(ev); err != nil {
		c.Log.Warn("notification-created: invalid event", zap.Error(err))
		return nil
	}
	_, err := c.UC.Dispatch(ctx, *ev)
	return err
}

func (c *Controller) Run(ctx context.Context) error {
	err := c.Sub.Consume(ctx, kafkax.JSONHandler(c.Handle))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
