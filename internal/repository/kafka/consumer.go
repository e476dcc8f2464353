package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/obs/retry"
)

// Handler processes one record. Errors are retried in place per the
// consumer's policy; a record that still fails is logged and skipped.
type Handler func(ctx context.Context, key, value []byte) error

type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var recordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kafka_consumer_records_total",
	Help: "Consumed records by outcome (handled, dropped).",
}, []string{"topic", "outcome"})

type Consumer struct {
	reader reader
	log    *zap.Logger
	cfg    *ConsumerConfig
}

type ConsumerConfig struct {
	Brokers       []string
	GroupID       string
	Topic         string
	FromBeginning bool
	// Concurrency caps in-flight records. Zero or one handles them in order.
	Concurrency int
	// Retry wraps each handler call. Nil means a single attempt.
	Retry  *retry.Policy
	Logger *zap.Logger
}

func NewConsumer(cfg *ConsumerConfig) *Consumer {
	if cfg.Logger == nil {
		cfg.Logger = zap.L()
	}

	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:               cfg.Brokers,
		GroupID:               cfg.GroupID,
		Topic:                 cfg.Topic,
		StartOffset:           start,
		WatchPartitionChanges: true,

		MinBytes:          1,
		MaxBytes:          10e6,
		MaxWait:           500 * time.Millisecond,
		SessionTimeout:    10 * time.Second,
		RebalanceTimeout:  15 * time.Second,
		HeartbeatInterval: 3 * time.Second,
	})

	return &Consumer{reader: r, log: consumerLogger(cfg.Logger, cfg), cfg: cfg}
}

func consumerLogger(l *zap.Logger, cfg *ConsumerConfig) *zap.Logger {
	return l.With(
		zap.String("component", "kafka.consumer"),
		zap.String("topic", cfg.Topic),
		zap.String("group", cfg.GroupID),
	)
}

func (c *Consumer) WithLogger(l *zap.Logger) *Consumer {
	if l == nil {
		return c
	}
	cp := *c
	cp.log = consumerLogger(l, c.cfg)
	return &cp
}

const (
	minFetchBackoff = 200 * time.Millisecond
	maxFetchBackoff = 5 * time.Second
	commitTimeout   = 5 * time.Second
)

// Consume blocks until ctx is done, then waits for in-flight records. The
// producer's trace context is restored from record headers before h runs.
//
// Offsets are committed per partition up to the last record of a finished
// prefix, so a crash never skips a record that was still being handled.
// Records interrupted by shutdown stay uncommitted and are redelivered.
func (c *Consumer) Consume(ctx context.Context, h Handler) error {
	workers := max(c.cfg.Concurrency, 1)
	log := c.log
	log.Info("consumer started", zap.Int("concurrency", workers))
	prop := otel.GetTextMapPropagator()

	p := pool.New().WithMaxGoroutines(workers)
	defer p.Wait()
	acks := newAckTracker(c.commit)

	backoff := minFetchBackoff
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("consumer stopped")
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				log.Debug("fetch EOF; retry", zap.Duration("backoff", backoff))
			} else {
				log.Warn("fetch failed; retry", zap.Error(err), zap.Duration("backoff", backoff))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxFetchBackoff)
			continue
		}
		backoff = minFetchBackoff

		tk := acks.track(msg)
		p.Go(func() {
			msgCtx := prop.Extract(ctx, carrierFor(&msg.Headers))
			if c.handle(msgCtx, msg, h) {
				acks.complete(tk)
			}
		})
	}
}

// handle reports whether the record is finished with, handled or dropped.
// False means shutdown interrupted it.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message, h Handler) bool {
	call := func() error { return h(ctx, msg.Key, msg.Value) }
	var err error
	if c.cfg.Retry != nil {
		err = retry.Do(ctx, call, *c.cfg.Retry)
	} else {
		err = call()
	}
	if err == nil {
		recordsTotal.WithLabelValues(c.cfg.Topic, "handled").Inc()
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	recordsTotal.WithLabelValues(c.cfg.Topic, "dropped").Inc()
	c.log.Error("record dropped",
		zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
	return true
}

func (c *Consumer) commit(msg kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.log.Warn("commit failed; will retry later",
			zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }

type ticket struct {
	msg  kafka.Message
	done bool
}

// ackTracker keeps fetched records per partition in fetch order and commits
// the newest one of each fully finished prefix.
type ackTracker struct {
	mu      sync.Mutex
	pending map[int][]*ticket
	commit  func(kafka.Message)
}

func newAckTracker(commit func(kafka.Message)) *ackTracker {
	return &ackTracker{pending: map[int][]*ticket{}, commit: commit}
}

func (t *ackTracker) track(msg kafka.Message) *ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk := &ticket{msg: msg}
	t.pending[msg.Partition] = append(t.pending[msg.Partition], tk)
	return tk
}

// complete commits while holding the lock so a partition's offsets are only
// ever committed in increasing order.
func (t *ackTracker) complete(tk *ticket) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tk.done = true
	q := t.pending[tk.msg.Partition]
	n := 0
	for n < len(q) && q[n].done {
		n++
	}
	if n == 0 {
		return
	}
	last := q[n-1].msg
	t.pending[tk.msg.Partition] = q[n:]
	t.commit(last)
}
