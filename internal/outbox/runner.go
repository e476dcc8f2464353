package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/outbox"
	"github.com/NordCoder/Gorev/internal/obs"
)

var (
	mPicked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_picked_total", Help: "Messages picked into processing.",
	})
	mOk = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_ok_total", Help: "Messages processed successfully.",
	})
	mErr = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_processed_err_total", Help: "Pick, handler and mark errors.",
	})
	mTickDur = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "outbox_tick_duration_seconds", Help: "Tick duration.",
		Buckets: prometheus.DefBuckets,
	})
	mBatchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_last_batch_size", Help: "Size of last picked batch.",
	})
)

type Config struct {
	Workers       int           `mapstructure:"workers"`
	BatchSize     int           `mapstructure:"batch_size"`
	Interval      time.Duration `mapstructure:"interval"`
	InProgressTTL time.Duration `mapstructure:"in_progress_ttl"`
}

// Runner relays pending outbox rows to their handlers. It is what turns an
// intent insert into a dispatch without the original caller staying around.
type Runner struct {
	log      *zap.Logger
	repo     outbox.Repository
	dispatch outbox.GlobalHandler
	cfg      Config
}

func NewRunner(log *zap.Logger, repo outbox.Repository, dispatch outbox.GlobalHandler, cfg Config) *Runner {
	cfg.Workers = max(cfg.Workers, 1)
	cfg.BatchSize = max(cfg.BatchSize, 1)
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.InProgressTTL <= 0 {
		cfg.InProgressTTL = 30 * time.Second
	}
	return &Runner{
		log:      log.With(zap.String("component", "outbox.runner")),
		repo:     repo,
		dispatch: dispatch,
		cfg:      cfg,
	}
}

// Run blocks until ctx is done and all workers have returned.
func (r *Runner) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.worker(ctx, id)
		}(i)
	}
	wg.Wait()
	return nil
}

func (r *Runner) worker(ctx context.Context, id int) {
	log := r.log.With(zap.Int("worker", id))
	log.Info("outbox worker started", zap.Duration("interval", r.cfg.Interval))

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("outbox worker stop")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick processes one batch. Rows whose handler fails stay IN_PROGRESS and are
// picked again once InProgressTTL passes.
func (r *Runner) Tick(ctx context.Context) {
	t0 := time.Now()
	defer func() { mTickDur.Observe(time.Since(t0).Seconds()) }()

	tr := otel.Tracer("outbox.runner")
	ctx, span := tr.Start(ctx, "outbox.tick", trace.WithAttributes(
		attribute.Int("batch.limit", r.cfg.BatchSize),
		attribute.String("in_progress_ttl", r.cfg.InProgressTTL.String()),
	))
	defer span.End()

	messages, err := r.repo.PickBatch(ctx, r.cfg.BatchSize, r.cfg.InProgressTTL)
	if err != nil {
		span.RecordError(err)
		mErr.Inc()
		obs.WithTrace(ctx, r.log).Error("outbox pick error", zap.Error(err))
		return
	}
	mPicked.Add(float64(len(messages)))
	mBatchSize.Set(float64(len(messages)))

	okKeys := make([]string, 0, len(messages))
	for _, m := range messages {
		if r.handle(ctx, m) {
			okKeys = append(okKeys, m.IdempotencyKey)
		}
	}

	if err := r.repo.MarkSuccess(ctx, okKeys); err != nil {
		span.RecordError(err)
		mErr.Inc()
		obs.WithTrace(ctx, r.log).Error("mark success error", zap.Error(err))
	}
}

func (r *Runner) handle(ctx context.Context, m outbox.Message) bool {
	// Rows written with a trace context continue that trace instead of the tick's.
	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier{
		"traceparent": m.Traceparent,
		"tracestate":  m.Tracestate,
		"baggage":     m.Baggage,
	})

	msgCtx, span := otel.Tracer("outbox.runner").Start(parent, "outbox.dispatch",
		trace.WithAttributes(
			attribute.String("outbox.key", m.IdempotencyKey),
			attribute.String("outbox.kind", m.Kind.String()),
		),
	)
	defer span.End()
	log := obs.WithTrace(msgCtx, r.log).With(zap.String("key", m.IdempotencyKey))

	handler, err := r.dispatch(m.Kind)
	if err != nil {
		span.RecordError(err)
		mErr.Inc()
		log.Error("no handler for kind", zap.Int("kind", int(m.Kind)), zap.Error(err))
		return false
	}
	if err := handler(msgCtx, m.Data); err != nil {
		span.RecordError(err)
		mErr.Inc()
		log.Error("handler error", zap.Stringer("kind", m.Kind), zap.Error(err))
		return false
	}
	mOk.Inc()
	return true
}
