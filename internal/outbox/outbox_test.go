package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/domain/outbox"
	"github.com/NordCoder/Gorev/internal/obs/retry"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []notification.Created
	fails  int
}

func (p *fakePublisher) PublishNotificationCreated(_ context.Context, ev notification.Created) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fails > 0 {
		p.fails--
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, ev)
	return nil
}

type fakeRepo struct {
	batch   []outbox.Message
	marked  []string
	pickErr error
}

func (r *fakeRepo) Enqueue(context.Context, string, outbox.Kind, []byte) error { return nil }

func (r *fakeRepo) PickBatch(context.Context, int, time.Duration) ([]outbox.Message, error) {
	if r.pickErr != nil {
		return nil, r.pickErr
	}
	b := r.batch
	r.batch = nil
	return b, nil
}

func (r *fakeRepo) MarkSuccess(_ context.Context, keys []string) error {
	r.marked = append(r.marked, keys...)
	return nil
}

type noWait struct{}

func (noWait) Next(int) time.Duration { return 0 }

func testPolicy() retry.Policy {
	p := retry.PublishPolicy(zap.NewNop())
	p.Attempts = 3
	p.Backoff = noWait{}
	return p
}

func createdMessage(t *testing.T, id string) outbox.Message {
	t.Helper()
	data, err := json.Marshal(notification.Created{NotificationID: id, UserID: "u-" + id, Title: "t", Body: "b"})
	require.NoError(t, err)
	return outbox.Message{IdempotencyKey: notification.OutboxKey(id), Kind: outbox.KindNotificationCreated, Data: data}
}

func TestTickPublishesAndMarks(t *testing.T) {
	pub := &fakePublisher{fails: 1}
	repo := &fakeRepo{batch: []outbox.Message{
		createdMessage(t, "a"),
		{IdempotencyKey: "bad", Kind: outbox.KindNotificationCreated, Data: []byte("{")},
		{IdempotencyKey: "unknown", Kind: outbox.Kind(99)},
		createdMessage(t, "b"),
	}}

	r := NewRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(pub, testPolicy()), Config{BatchSize: 10})
	r.Tick(context.Background())

	assert.Equal(t, []string{"notification:a", "notification:b"}, repo.marked)
	require.Len(t, pub.events, 2)
	assert.Equal(t, "a", pub.events[0].NotificationID)
	assert.Equal(t, "u-b", pub.events[1].UserID)
}

func TestTickPickError(t *testing.T) {
	repo := &fakeRepo{pickErr: errors.New("db down")}
	r := NewRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(&fakePublisher{}, testPolicy()), Config{})
	r.Tick(context.Background())
	assert.Empty(t, repo.marked)
}

func TestRunStopsWithContext(t *testing.T) {
	repo := &fakeRepo{}
	r := NewRunner(zap.NewNop(), repo, MakeGlobalOutboxHandler(&fakePublisher{}, testPolicy()),
		Config{Workers: 2, Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop")
	}
}
