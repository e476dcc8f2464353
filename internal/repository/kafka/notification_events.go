package kafka

import (
	"context"

	"github.com/NordCoder/Gorev/internal/domain/kafka"
	"github.com/NordCoder/Gorev/internal/domain/notification"
)

const TopicNotificationsCreated = "gorev.notifications.created"

type jsonPublisher interface {
	PublishJSON(ctx context.Context, key []byte, v any) error
}

// NotificationEvents keys records by recipient so one user's events stay ordered.
type NotificationEvents struct {
	p jsonPublisher
}

func NewNotificationEvents(p *Producer) *NotificationEvents { return &NotificationEvents{p: p} }

var _ kafka.NotificationEvents = (*NotificationEvents)(nil)

func (e *NotificationEvents) PublishNotificationCreated(ctx context.Context, ev notification.Created) error {
	return e.p.PublishJSON(ctx, []byte(ev.UserID), ev)
}
