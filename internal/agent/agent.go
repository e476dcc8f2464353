package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
)

var alertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "agent_alerts_total",
	Help: "Pushed payloads by outcome.",
}, []string{"outcome"})

const (
	DefaultTitle = "New notification"

	// MessageShowNotification is the local test message sent from the settings screen.
	MessageShowNotification = "SHOW_NOTIFICATION"
)

type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeShown
	OutcomeSuppressed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeShown:
		return "shown"
	case OutcomeSuppressed:
		return "suppressed"
	}
	return "ignored"
}

// Payload is what the push provider hands the agent.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}

// Message is an in-app message posted to the agent.
type Message struct {
	Type   string
	Title  string
	Body   string
	NoteID string
}

type Config struct {
	Origin       string
	Window       time.Duration
	DefaultTitle string
	Icon         string
	Badge        string
}

type Option func(*Agent)

func WithChannel(ch Channel) Option   { return func(a *Agent) { a.ch = ch } }
func WithLogger(l *zap.Logger) Option { return func(a *Agent) { a.log = l } }
func WithGuard(g *Guard) Option       { return func(a *Agent) { a.guard = g } }
func WithID(id string) Option         { return func(a *Agent) { a.id = id } }

// Agent is the background worker on a device. It moves
// Uninitialized -> Installing -> Active <-> HandlingPush and ends in
// Unregistered.
type Agent struct {
	id      string
	cfg     Config
	guard   *Guard
	ch      Channel
	surface Surface
	router  Router
	log     *zap.Logger

	mu       sync.Mutex
	state    State
	inflight int
	leave    func()
}

func New(cfg Config, surface Surface, clients Clients, opts ...Option) *Agent {
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = DefaultTitle
	}
	a := &Agent{
		id:      uuid.NewString(),
		cfg:     cfg,
		surface: surface,
		router:  Router{Origin: cfg.Origin, Clients: clients},
		log:     zap.L(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.guard == nil {
		a.guard = NewGuard(cfg.Window)
	}
	a.log = a.log.With(zap.String("component", "agent"), zap.String("agent_id", a.id))
	return a
}

func (a *Agent) ID() string { return a.id }

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Install joins the cross-instance channel and makes the agent Active.
// Stale registrations should already be gone; see Installer.
func (a *Agent) Install(_ context.Context) error {
	a.mu.Lock()
	if a.state != StateUninitialized {
		st := a.state
		a.mu.Unlock()
		return fmt.Errorf("install in state %s: %w", st, notification.ErrNotActive)
	}
	a.state = StateInstalling
	a.mu.Unlock()

	var leave func()
	if a.ch != nil {
		leave = a.ch.Join(a.id, a.guard.remember)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.leave = leave
	if a.state == StateInstalling {
		a.state = StateActive
	}
	a.log.Info("agent active")
	return nil
}

// HandlePush decides whether p becomes a visible alert. Identical title and
// body within the window, seen here or announced by another instance, are
// suppressed.
func (a *Agent) HandlePush(ctx context.Context, p Payload) (Outcome, error) {
	if err := a.begin(); err != nil {
		return OutcomeIgnored, err
	}
	defer a.end()

	alert := a.alertFor(p)
	fp := FingerprintOf(alert.Title, alert.Body)
	if a.guard.ShouldSuppress(fp) {
		alertsTotal.WithLabelValues(OutcomeSuppressed.String()).Inc()
		a.log.Debug("duplicate alert suppressed", zap.String("title", alert.Title))
		return OutcomeSuppressed, nil
	}
	if a.ch != nil {
		a.ch.Announce(a.id, fp)
	}

	if err := a.surface.Show(ctx, alert); err != nil {
		return OutcomeIgnored, fmt.Errorf("show alert: %w", err)
	}
	alertsTotal.WithLabelValues(OutcomeShown.String()).Inc()
	return OutcomeShown, nil
}

// HandleMessage routes SHOW_NOTIFICATION through the same path as a push;
// any other message type is ignored.
func (a *Agent) HandleMessage(ctx context.Context, m Message) (Outcome, error) {
	if m.Type != MessageShowNotification {
		return OutcomeIgnored, nil
	}
	p := Payload{Title: m.Title, Body: m.Body}
	if m.NoteID != "" {
		p.Data = map[string]string{"noteId": m.NoteID}
	}
	return a.HandlePush(ctx, p)
}

// HandleClick works in every state: an alert may outlive its agent.
func (a *Agent) HandleClick(ctx context.Context, alert *Alert) error {
	return a.router.Route(ctx, alert)
}

// Unregister is terminal and idempotent.
func (a *Agent) Unregister(_ context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateUnregistered {
		return
	}
	a.state = StateUnregistered
	if a.leave != nil {
		a.leave()
		a.leave = nil
	}
	a.log.Info("agent unregistered")
}

func (a *Agent) begin() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case StateActive, StateHandlingPush:
		a.inflight++
		a.state = StateHandlingPush
		return nil
	}
	return fmt.Errorf("push in state %s: %w", a.state, notification.ErrNotActive)
}

func (a *Agent) end() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight--
	if a.inflight == 0 && a.state == StateHandlingPush {
		a.state = StateActive
	}
}

func (a *Agent) alertFor(p Payload) *Alert {
	title := p.Title
	if title == "" {
		title = a.cfg.DefaultTitle
	}
	data := make(map[string]string, len(p.Data))
	for k, v := range p.Data {
		data[k] = v
	}
	return &Alert{
		Title: title,
		Body:  p.Body,
		Icon:  a.cfg.Icon,
		Badge: a.cfg.Badge,
		Data:  data,
	}
}
