package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Gorev/internal/config/notify-api"
	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/push/provider"
	pg "github.com/NordCoder/Gorev/internal/repository/postgres"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return obs.NewLogger(cfg.LoggerConfig())
}

func initOTel(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	closer, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		return nil, err
	}
	return closer.Shutdown, nil
}

func initDB(ctx context.Context, cfg *config.Config) (*pg.DB, error) {
	return pg.New(ctx, cfg.DB)
}

// initSender returns nil without credentials; the direct-send route then
// answers 500 and everything else keeps working.
func initSender(ctx context.Context, cfg *config.Config, logger *zap.Logger) notification.Sender {
	s, err := provider.New(ctx, cfg.Push, logger)
	if err != nil {
		logger.Warn("push sender disabled", zap.String("driver", cfg.Push.Driver), zap.Error(err))
		return nil
	}
	return s
}
