package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/obs/retry"
)

type memWriter struct{ msgs []kafka.Message }

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}
func (w *memWriter) Close() error { return nil }

func TestNotificationEventsKeyedByUser(t *testing.T) {
	w := &memWriter{}
	p := &Producer{w: w, topic: TopicNotificationsCreated, log: zap.NewNop()}
	ev := notification.Created{NotificationID: "n1", UserID: "u42", Title: "Shared", Body: "Groceries"}

	require.NoError(t, NewNotificationEvents(p).PublishNotificationCreated(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "u42", string(w.msgs[0].Key))

	var got notification.Created
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, ev, got)
}

// memReader serves msgs in order. Once drained it cancels the consume
// context when cancel is set, otherwise it blocks until the test cancels.
type memReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) == 0 {
		r.mu.Unlock()
		if r.cancel != nil {
			r.cancel()
		}
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	r.mu.Unlock()
	return m, nil
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *memReader) Close() error { return nil }

func (r *memReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func quickRetry(attempts int) *retry.Policy {
	return &retry.Policy{
		Name:      "test",
		Attempts:  attempts,
		Retryable: func(err error) bool { return !errors.Is(err, retry.ErrPermanent) },
	}
}

func TestConsumeSkipsUndecodableWithoutRetry(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &memReader{cancel: cancel, msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"notification_id":"a","user_id":"u"}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"notification_id":"b","user_id":"u"}`)},
	}}
	c := &Consumer{reader: r, log: zap.NewNop(), cfg: &ConsumerConfig{Retry: quickRetry(3)}}

	var (
		seen  []string
		calls = map[int64]int{}
	)
	decode := JSONHandler(func(_ context.Context, _ []byte, ev *notification.Created) error {
		seen = append(seen, ev.NotificationID)
		return nil
	})
	offsets := map[string]int64{`not json`: 2}
	err := c.Consume(ctx, func(ctx context.Context, key, value []byte) error {
		calls[offsets[string(value)]]++
		return decode(ctx, key, value)
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, 1, calls[2], "decode errors are permanent")
	assert.Equal(t, []int64{1, 2, 3}, r.commits())
}

func TestConsumeRetriesTransientFailureInPlace(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &memReader{msgs: []kafka.Message{{Offset: 5, Value: []byte(`x`)}}}
	c := &Consumer{reader: r, log: zap.NewNop(), cfg: &ConsumerConfig{Retry: quickRetry(5)}}

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, func(context.Context, []byte, []byte) error {
			if calls.Add(1) < 3 {
				return errors.New("db: connection reset")
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, []int64{5}, r.commits())
}

func TestConsumeLeavesInterruptedRecordUncommitted(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &memReader{cancel: cancel, msgs: []kafka.Message{{Offset: 9}}}
	c := &Consumer{reader: r, log: zap.NewNop(), cfg: &ConsumerConfig{Retry: quickRetry(3)}}

	err := c.Consume(ctx, func(ctx context.Context, _, _ []byte) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.commits())
}

func TestConsumeHandlesRecordsConcurrently(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &memReader{msgs: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	c := &Consumer{reader: r, log: zap.NewNop(), cfg: &ConsumerConfig{Concurrency: 2}}

	var (
		wg     sync.WaitGroup
		serial atomic.Bool
	)
	wg.Add(2)
	both := make(chan struct{})
	go func() { wg.Wait(); close(both) }()

	done := make(chan error, 1)
	go func() {
		done <- c.Consume(ctx, func(context.Context, []byte, []byte) error {
			wg.Done()
			select {
			case <-both:
			case <-time.After(time.Second):
				serial.Store(true)
			}
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		got := r.commits()
		return len(got) > 0 && got[len(got)-1] == 2
	}, 3*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	assert.False(t, serial.Load(), "second record waited for the first")
}

func TestAckTrackerCommitsFinishedPrefix(t *testing.T) {
	var committed []int64
	acks := newAckTracker(func(m kafka.Message) { committed = append(committed, m.Offset) })

	t1 := acks.track(kafka.Message{Partition: 0, Offset: 1})
	t2 := acks.track(kafka.Message{Partition: 0, Offset: 2})
	t3 := acks.track(kafka.Message{Partition: 0, Offset: 3})
	other := acks.track(kafka.Message{Partition: 1, Offset: 10})

	acks.complete(t3)
	assert.Empty(t, committed, "offset 3 must wait for 1 and 2")
	acks.complete(other)
	acks.complete(t1)
	acks.complete(t2)

	assert.Equal(t, []int64{10, 1, 3}, committed)
}

func TestConsumeRestoresTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const tp = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	r := &memReader{cancel: cancel, msgs: []kafka.Message{
		{Offset: 7, Headers: []kafka.Header{{Key: "traceparent", Value: []byte(tp)}}},
	}}
	c := &Consumer{reader: r, log: zap.NewNop(), cfg: &ConsumerConfig{}}

	var traceID string
	_ = c.Consume(ctx, func(ctx context.Context, _, _ []byte) error {
		traceID = trace.SpanContextFromContext(ctx).TraceID().String()
		return nil
	})

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", traceID)
	assert.Equal(t, []int64{7}, r.commits())
}

func TestHeaderCarrierSetReplaces(t *testing.T) {
	hs := []kafka.Header{{Key: "traceparent", Value: []byte("old")}}
	c := carrierFor(&hs)

	c.Set("traceparent", "new")
	c.Set("baggage", "k=v")

	require.Len(t, hs, 2)
	require.Equal(t, "new", c.Get("traceparent"))
	require.Equal(t, []string{"traceparent", "baggage"}, c.Keys())
	require.Empty(t, c.Get("tracestate"))
}
