package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Config describes the pgx pool. Zero values keep the pgxpool defaults.
type Config struct {
	DSN               string        `mapstructure:"dsn"`
	AppName           string        `mapstructure:"app_name"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
}

type DB struct {
	Pool         *pgxpool.Pool
	QueryTimeout time.Duration
}

const connectProbeTimeout = 5 * time.Second

func poolConfig(cfg Config) (*pgxpool.Config, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	if cfg.AppName != "" {
		pcfg.ConnConfig.RuntimeParams["application_name"] = cfg.AppName
	}
	setPositive(&pcfg.MaxConns, cfg.MaxConns)
	setPositive(&pcfg.MinConns, cfg.MinConns)
	setPositive(&pcfg.MaxConnLifetime, cfg.MaxConnLifetime)
	setPositive(&pcfg.MaxConnIdleTime, cfg.MaxConnIdleTime)
	setPositive(&pcfg.HealthCheckPeriod, cfg.HealthCheckPeriod)
	return pcfg, nil
}

func setPositive[T int32 | time.Duration](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// New opens the pool, probes it once and exposes its stats to prometheus.
func New(ctx context.Context, cfg Config) (*DB, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	db := &DB{Pool: pool, QueryTimeout: cfg.QueryTimeout}
	pctx, cancel := context.WithTimeout(ctx, connectProbeTimeout)
	defer cancel()
	if err := db.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := prometheus.Register(newPoolCollector(pool)); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			pool.Close()
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
	}
	return db, nil
}

func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

func (db *DB) Close() { db.Pool.Close() }

func (db *DB) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if db.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.QueryTimeout)
}
