package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/push"
)

type messenger interface {
	Send(ctx context.Context, m *messaging.Message) (string, error)
}

// Sender delivers through the Firebase Admin SDK. Selected with push.driver=firebase.
type Sender struct {
	client   messenger
	linkBase string
	log      *zap.Logger
}

var _ notification.Sender = (*Sender)(nil)

func New(ctx context.Context, cfg push.Config, log *zap.Logger) (*Sender, error) {
	var opt option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opt = option.WithCredentialsFile(cfg.CredentialsFile)
	case cfg.CredentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(cfg.CredentialsJSON))
	default:
		return nil, push.ErrNoCredentials
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init messaging client: %w", err)
	}
	if log == nil {
		log = zap.L()
	}
	return &Sender{
		client:   client,
		linkBase: cfg.LinkBaseURL,
		log:      log.With(zap.String("component", "push.firebase")),
	}, nil
}

func (s *Sender) Send(ctx context.Context, token string, m notification.Message) error {
	msg := &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: m.Title, Body: m.Body},
	}
	if m.NoteID != "" {
		msg.Data = map[string]string{"noteId": m.NoteID}
		if s.linkBase != "" {
			msg.Webpush = &messaging.WebpushConfig{
				FCMOptions: &messaging.WebpushFCMOptions{Link: notification.AbsoluteLink(s.linkBase, m.NoteID)},
			}
		}
	}

	id, err := s.client.Send(ctx, msg)
	if err != nil {
		if messaging.IsUnregistered(err) || messaging.IsInvalidArgument(err) || messaging.IsSenderIDMismatch(err) {
			return fmt.Errorf("%w: %w", notification.ErrTokenInvalid, err)
		}
		return fmt.Errorf("%w: %w", notification.ErrProviderUnavailable, err)
	}
	s.log.Debug("message sent", zap.String("message_id", id))
	return nil
}
