package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Gorev/internal/config/push-dispatcher"
	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/obs/retry"
	"github.com/NordCoder/Gorev/internal/push/provider"
	"github.com/NordCoder/Gorev/internal/repository/kafka"
	pg "github.com/NordCoder/Gorev/internal/repository/postgres"
	"github.com/NordCoder/Gorev/internal/services/notify-api/tokens"
	dispatcher "github.com/NordCoder/Gorev/internal/services/push-dispatcher"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func wiring(db *pg.DB, cfg *config.Config, cons *kafka.Consumer, out notification.Sender, l *zap.Logger) *dispatcher.Controller {
	registry := &tokens.Registry{
		Tx:    pg.NewTransactor(db, l),
		Repo:  pg.NewTokenRepo(db),
		Clock: systemClock{},
		Log:   l,
	}
	uc := &dispatcher.Dispatcher{
		Tokens:      registry,
		Claims:      pg.NewDispatchRepo(db),
		Out:         out,
		MaxParallel: cfg.Push.MaxParallel,
		Log:         l,
	}
	return &dispatcher.Controller{Log: l, Sub: cons, UC: uc}
}

func main() {
	cfgPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(obs.LogConfig{Level: cfg.LogLevel, App: "gorev/push-dispatcher"})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	zap.ReplaceGlobals(l)

	l.Info("starting push-dispatcher",
		zap.Strings("brokers", cfg.In.Brokers),
		zap.String("topic", cfg.In.Topic),
		zap.String("driver", cfg.Push.Driver),
		zap.String("metrics_addr", cfg.Server.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(rootCtx, cfg.OTELConfig())
	if err != nil {
		l.Warn("otel init", zap.Error(err))
	} else {
		defer func() { _ = otelCloser.Shutdown(context.Background()) }()
	}

	// push provider; without credentials there is nothing to dispatch with
	out, err := provider.New(rootCtx, cfg.Push, l)
	if err != nil {
		l.Fatal("push provider", zap.Error(err))
	}

	// db
	db, err := pg.New(rootCtx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	l.Info("db connected")

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, l)

	// kafka
	handleRetry := retry.HandlePolicy(cfg.In.RetryAttempts, cfg.In.RetryBase, cfg.In.RetryMax, l)
	cons := kafka.BootstrapConsumer(rootCtx, &kafka.ConsumerConfig{
		Brokers:       cfg.In.Brokers,
		GroupID:       cfg.In.GroupID,
		Topic:         cfg.In.Topic,
		FromBeginning: cfg.In.FromBeginning,
		Concurrency:   cfg.In.Concurrency,
		Retry:         &handleRetry,
		Logger:        l,
	}, cfg.In.Partitions, l)
	defer func() { _ = cons.Close() }()

	// start
	ctrl := wiring(db, cfg, cons, out, l)
	errCh := make(chan error, 1)
	go func() {
		l.Info("controller starting")
		errCh <- ctrl.Run(rootCtx)
	}()

	select {
	case <-rootCtx.Done():
		l.Info("shutdown signal")
	case runErr := <-errCh:
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			l.Error("controller error", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
