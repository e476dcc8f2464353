package kafka

import (
	"context"

	"github.com/NordCoder/Gorev/internal/domain/notification"
)

type NotificationEvents interface {
	PublishNotificationCreated(ctx context.Context, ev notification.Created) error
}
