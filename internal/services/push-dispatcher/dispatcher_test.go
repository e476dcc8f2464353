package dispatcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	kafkax "github.com/NordCoder/Gorev/internal/repository/kafka"
)

type tokenMap map[string][]string

func (m tokenMap) TokensFor(_ context.Context, userID string) ([]string, error) {
	if userID == "broken" {
		return nil, errors.New("db down")
	}
	return m[userID], nil
}

type memClaims struct {
	mu        sync.Mutex
	claimed   map[string]bool
	completed map[string][2]int
}

func newClaims() *memClaims {
	return &memClaims{claimed: map[string]bool{}, completed: map[string][2]int{}}
}

func (c *memClaims) Claim(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed[id] {
		return false, nil
	}
	c.claimed[id] = true
	return true, nil
}

func (c *memClaims) Complete(_ context.Context, id string, sent, total int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.completed[id] = [2]int{sent, total}
	return nil
}

// countingSender fails every token starting with "bad".
type countingSender struct {
	mu    sync.Mutex
	calls map[string]int
	last  notification.Message
}

func (s *countingSender) Send(_ context.Context, tok string, m notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[tok]++
	s.last = m
	if strings.HasPrefix(tok, "bad") {
		return notification.ErrTokenInvalid
	}
	return nil
}

func newDispatcher(tokens tokenMap, claims *memClaims, out *countingSender) *Dispatcher {
	return &Dispatcher{Tokens: tokens, Claims: claims, Out: out, MaxParallel: 3, Log: zap.NewNop()}
}

func TestDispatchAttemptsAllTokens(t *testing.T) {
	out := &countingSender{}
	claims := newClaims()
	d := newDispatcher(tokenMap{"u1": {"t1", "bad1", "t2", "bad2", "t3"}}, claims, out)
	note := "n1"

	rep, err := d.Dispatch(context.Background(), notification.Created{
		NotificationID: "i1", UserID: "u1", Title: "Done", Body: "Milk", NoteID: &note,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Sent)
	assert.Equal(t, 5, rep.Total)
	assert.True(t, rep.Partial())
	assert.Len(t, out.calls, 5)
	for tok, n := range out.calls {
		assert.Equal(t, 1, n, tok)
	}
	assert.Equal(t, notification.Message{Title: "Done", Body: "Milk", NoteID: "n1"}, out.last)
	assert.Equal(t, [2]int{3, 5}, claims.completed["i1"])
}

func TestDispatchNoTokens(t *testing.T) {
	out := &countingSender{}
	claims := newClaims()
	d := newDispatcher(tokenMap{}, claims, out)

	rep, err := d.Dispatch(context.Background(), notification.Created{NotificationID: "i1", UserID: "ghost"})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Sent)
	assert.Equal(t, 0, rep.Total)
	assert.Empty(t, out.calls)
	assert.Empty(t, claims.claimed)
}

func TestDispatchRedeliveryIsNoop(t *testing.T) {
	out := &countingSender{}
	d := newDispatcher(tokenMap{"u1": {"t1", "t2"}}, newClaims(), out)
	ev := notification.Created{NotificationID: "i1", UserID: "u1", Title: "x"}

	_, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	rep, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)

	assert.True(t, rep.Skipped)
	assert.Equal(t, map[string]int{"t1": 1, "t2": 1}, out.calls)
}

func TestDispatchConcurrentIntentsAreIndependent(t *testing.T) {
	out := &countingSender{}
	d := newDispatcher(tokenMap{"a": {"a1", "a2"}, "b": {"bad-b1", "b2"}}, newClaims(), out)

	var wg sync.WaitGroup
	reports := make([]notification.Report, 2)
	for i, uid := range []string{"a", "b"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reports[i], _ = d.Dispatch(context.Background(), notification.Created{NotificationID: "i-" + uid, UserID: uid})
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, reports[0].Sent)
	assert.Equal(t, 1, reports[1].Sent)
	assert.Len(t, out.calls, 4)
}

func TestDispatchStoreFailure(t *testing.T) {
	d := newDispatcher(tokenMap{}, newClaims(), &countingSender{})
	_, err := d.Dispatch(context.Background(), notification.Created{NotificationID: "i1", UserID: "broken"})
	require.Error(t, err)
}

type flakyTokens struct {
	fails int
	inner tokenMap
}

func (f *flakyTokens) TokensFor(ctx context.Context, userID string) ([]string, error) {
	if f.fails > 0 {
		f.fails--
		return nil, errors.New("db: connection reset")
	}
	return f.inner.TokensFor(ctx, userID)
}

func TestDispatchRetryAfterLookupFailureSendsOnce(t *testing.T) {
	out := &countingSender{}
	claims := newClaims()
	d := &Dispatcher{
		Tokens:      &flakyTokens{fails: 1, inner: tokenMap{"u1": {"t1", "t2"}}},
		Claims:      claims,
		Out:         out,
		MaxParallel: 2,
		Log:         zap.NewNop(),
	}
	ev := notification.Created{NotificationID: "i1", UserID: "u1"}

	_, err := d.Dispatch(context.Background(), ev)
	require.Error(t, err)
	assert.False(t, claims.claimed["i1"], "a failed lookup claims nothing")

	rep, err := d.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Sent)
	assert.Equal(t, map[string]int{"t1": 1, "t2": 1}, out.calls)
}

type stubConsumer struct {
	values [][]byte
	errs   []error
}

func (s *stubConsumer) Consume(ctx context.Context, h kafkax.Handler) error {
	for _, v := range s.values {
		s.errs = append(s.errs, h(ctx, nil, v))
	}
	return context.Canceled
}

func TestControllerRun(t *testing.T) {
	out := &countingSender{}
	sub := &stubConsumer{values: [][]byte{
		[]byte(`{"notification_id":"i1","user_id":"u1","title":"Hi","body":"there"}`),
		[]byte(`{"notification_id":"","user_id":"u1"}`),
		[]byte(`{"notification_id":"i2","user_id":"broken"}`),
	}}
	c := &Controller{Log: zap.NewNop(), Sub: sub, UC: newDispatcher(tokenMap{"u1": {"t1"}}, newClaims(), out)}

	require.NoError(t, c.Run(context.Background()))
	require.Len(t, sub.errs, 3)
	assert.NoError(t, sub.errs[0])
	assert.NoError(t, sub.errs[1], "invalid events are dropped")
	assert.Error(t, sub.errs[2], "store failures go back to the consumer for retry")
	assert.Equal(t, map[string]int{"t1": 1}, out.calls)
}
