// Package provider picks the push sender named by push.driver.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/push"
	"github.com/NordCoder/Gorev/internal/push/fcm"
	"github.com/NordCoder/Gorev/internal/push/firebase"
)

func New(ctx context.Context, cfg push.Config, log *zap.Logger) (notification.Sender, error) {
	if !cfg.Configured() {
		return nil, push.ErrNoCredentials
	}
	switch cfg.Driver {
	case "", push.DriverFCM:
		s, err := fcm.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case push.DriverFirebase:
		s, err := firebase.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown push driver %q", cfg.Driver)
}
