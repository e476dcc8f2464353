package main

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Gorev/internal/config/notify-api"
	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/obs"
	pg "github.com/NordCoder/Gorev/internal/repository/postgres"
	"github.com/NordCoder/Gorev/internal/services/notify-api/httpapi"
)

func buildHTTPServer(cfg *config.Config, logger *zap.Logger, db *pg.DB, w httpapi.NotificationWriter, reg httpapi.TokenRegistry, sender notification.Sender) (*http.Server, error) {
	api, err := httpapi.NewServer(w, reg, httpapi.Opts{
		Logger:      logger,
		Auth:        cfg.Auth,
		MaxParallel: cfg.Push.MaxParallel,
		Sender:      sender,
	}).Handler()
	if err != nil {
		return nil, err
	}

	root := http.NewServeMux()
	root.Handle("/", obs.HTTPHandler(api, "notify-api"))
	root.Handle("/healthz", obs.HealthHandler(db.Ping))

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           root,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}, nil
}
