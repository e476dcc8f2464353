package writer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/domain/outbox"
	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/repository/postgres"
)

var intentsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "notify_api_intents_created_total",
	Help: "Notification intents written.",
})

type Request struct {
	Recipients []string
	Title      string
	Body       string
	NoteID     *string
}

// Writer records one intent per recipient together with the outbox row that
// triggers its dispatch.
type Writer struct {
	Tx      postgres.Transactor
	Intents notification.Repo
	Outbox  outbox.Repository
	Log     *zap.Logger
}

// Notify creates exactly len(req.Recipients) intents. Recipients are not
// deduplicated here and every call is a new event. Either all rows are
// written or none.
func (w *Writer) Notify(ctx context.Context, req Request) ([]*notification.Intent, error) {
	log := obs.WithTrace(ctx, w.Log)
	if len(req.Recipients) == 0 {
		log.Debug("notify without recipients")
		return nil, nil
	}

	intents := make([]*notification.Intent, 0, len(req.Recipients))
	err := w.Tx.WithTx(ctx, func(ctx context.Context) error {
		intents = intents[:0]
		for _, uid := range req.Recipients {
			in := &notification.Intent{UserID: uid, Title: req.Title, Body: req.Body, NoteID: req.NoteID}
			if err := w.Intents.Create(ctx, in); err != nil {
				return fmt.Errorf("create intent for %s: %w", uid, err)
			}
			data, err := json.Marshal(in.Created())
			if err != nil {
				return fmt.Errorf("encode trigger: %w", err)
			}
			if err := w.Outbox.Enqueue(ctx, notification.OutboxKey(in.ID), outbox.KindNotificationCreated, data); err != nil {
				return fmt.Errorf("enqueue trigger: %w", err)
			}
			intents = append(intents, in)
		}
		return nil
	})
	if err != nil {
		log.Error("notify failed", zap.Int("recipients", len(req.Recipients)), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", notification.ErrStoreWrite, err)
	}

	intentsCreated.Add(float64(len(intents)))
	log.Info("intents created", zap.Int("count", len(intents)))
	return intents, nil
}

// MarkRead is only allowed on the caller's own intents.
func (w *Writer) MarkRead(ctx context.Context, userID, id string) error {
	if err := w.Intents.MarkRead(ctx, userID, id); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// List returns the user's newest intents. A limit outside 1..MaxListLimit
// falls back to DefaultListLimit or is capped.
func (w *Writer) List(ctx context.Context, userID string, limit int) ([]*notification.Intent, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	out, err := w.Intents.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list intents: %w", err)
	}
	return out, nil
}
