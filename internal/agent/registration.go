package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const DefaultSettle = 500 * time.Millisecond

type Registration struct {
	ID        string
	ScriptURL string
	Scope     string
}

// Registrar is the platform's worker registration API.
type Registrar interface {
	Registrations(ctx context.Context) ([]Registration, error)
	Unregister(ctx context.Context, id string) error
	Register(ctx context.Context, scriptURL, scope string) (Registration, error)
}

// Installer makes sure exactly one agent registration exists for an origin.
// Every existing registration is removed first, stale or not.
type Installer struct {
	Registrar Registrar
	ScriptURL string
	Scope     string
	Settle    time.Duration
	Log       *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func (i *Installer) Install(ctx context.Context) (Registration, error) {
	log := i.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "agent_installer"))

	existing, err := i.Registrar.Registrations(ctx)
	if err != nil {
		return Registration{}, fmt.Errorf("list registrations: %w", err)
	}
	for _, r := range existing {
		if err := i.Registrar.Unregister(ctx, r.ID); err != nil {
			log.Warn("unregister stale agent", zap.String("registration", r.ID), zap.Error(err))
		}
	}

	if len(existing) > 0 {
		settle := i.Settle
		if settle <= 0 {
			settle = DefaultSettle
		}
		sleep := i.sleep
		if sleep == nil {
			sleep = sleepCtx
		}
		if err := sleep(ctx, settle); err != nil {
			return Registration{}, err
		}
	}

	scope := i.Scope
	if scope == "" {
		scope = "/"
	}
	reg, err := i.Registrar.Register(ctx, i.ScriptURL, scope)
	if err != nil {
		return Registration{}, fmt.Errorf("register agent: %w", err)
	}
	log.Info("agent registered",
		zap.String("registration", reg.ID),
		zap.Int("replaced", len(existing)),
	)
	return reg, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
