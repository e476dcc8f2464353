package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/push"
)

type recordingClient struct {
	got []*messaging.Message
	err error
}

func (c *recordingClient) Send(_ context.Context, m *messaging.Message) (string, error) {
	c.got = append(c.got, m)
	if c.err != nil {
		return "", c.err
	}
	return "projects/p/messages/1", nil
}

func TestSendMapsMessage(t *testing.T) {
	c := &recordingClient{}
	s := &Sender{client: c, linkBase: "https://gorev.app", log: zap.NewNop()}

	require.NoError(t, s.Send(context.Background(), "tok", notification.Message{Title: "Shared", Body: "List", NoteID: "n9"}))
	require.Len(t, c.got, 1)
	m := c.got[0]
	assert.Equal(t, "tok", m.Token)
	assert.Equal(t, "Shared", m.Notification.Title)
	assert.Equal(t, "n9", m.Data["noteId"])
	assert.Equal(t, "https://gorev.app/?note=n9", m.Webpush.FCMOptions.Link)
}

func TestSendWrapsUnknownErrors(t *testing.T) {
	s := &Sender{client: &recordingClient{err: errors.New("dial tcp: timeout")}, log: zap.NewNop()}
	err := s.Send(context.Background(), "tok", notification.Message{Title: "t"})
	require.ErrorIs(t, err, notification.ErrProviderUnavailable)
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), push.Config{}, zap.NewNop())
	require.ErrorIs(t, err, push.ErrNoCredentials)
}
