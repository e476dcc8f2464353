package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	config "github.com/NordCoder/Gorev/internal/config/notify-api"
	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/obs/retry"
	"github.com/NordCoder/Gorev/internal/outbox"
	kafkax "github.com/NordCoder/Gorev/internal/repository/kafka"
	pg "github.com/NordCoder/Gorev/internal/repository/postgres"
	"github.com/NordCoder/Gorev/internal/services/notify-api/tokens"
	"github.com/NordCoder/Gorev/internal/services/notify-api/writer"
)

func main() {
	cfgPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	logger.Info("starting notify-api",
		zap.String("env", cfg.App.Env),
		zap.String("http_addr", cfg.Server.HTTPAddr),
		zap.Bool("auth", cfg.Auth.Enable),
	)

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Warn("otel init", zap.Error(err))
		otelShutdown = func(context.Context) error { return nil }
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	logger.Info("db connected")

	// store
	tx := pg.NewTransactor(db, logger)
	registry := &tokens.Registry{Tx: tx, Repo: pg.NewTokenRepo(db), Clock: systemClock{}, Log: logger}
	outboxRepo := pg.NewOutboxRepo(db)
	w := &writer.Writer{Tx: tx, Intents: pg.NewNotificationRepo(db), Outbox: outboxRepo, Log: logger}

	// trigger
	if err := kafkax.EnsureTopic(rootCtx, cfg.Kafka.Brokers, kafkax.TopicSpec{Name: cfg.Kafka.Topic, NumPartitions: 3}, logger); err != nil {
		logger.Warn("ensure topic", zap.Error(err))
	}
	producer := kafkax.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(logger)
	defer func() { _ = producer.Close() }()
	relay := outbox.NewRunner(logger, outboxRepo,
		outbox.MakeGlobalOutboxHandler(kafkax.NewNotificationEvents(producer), retry.PublishPolicy(logger)),
		cfg.Outbox,
	)

	// servers
	httpSrv, err := buildHTTPServer(cfg, logger, db, w, registry, initSender(rootCtx, cfg, logger))
	if err != nil {
		logger.Fatal("build http", zap.Error(err))
	}
	grpcSrv, hs, grpcLn, err := buildGRPCServer(cfg)
	if err != nil {
		logger.Fatal("build grpc", zap.Error(err))
	}
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, db.Ping, logger)

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return serveGRPC(grpcSrv, grpcLn, logger) })
	g.Go(func() error { return relay.Run(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		hs.Shutdown()

		shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
		defer cancel()
		_ = httpSrv.Shutdown(shCtx)
		_ = ms.Shutdown(shCtx)
		grpcSrv.GracefulStop()
		return nil
	})
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("notify-api stopped", zap.Error(err))
	}
	logger.Info("bye")
}
