package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/push"
)

const (
	defaultBaseURL = "https://fcm.googleapis.com"
	defaultTimeout = 10 * time.Second
)

// Sender talks to the FCM HTTP v1 messages:send endpoint.
type Sender struct {
	endpoint string
	ts       oauth2.TokenSource
	hc       *http.Client
	linkBase string
	log      *zap.Logger
}

var _ notification.Sender = (*Sender)(nil)

func New(ctx context.Context, cfg push.Config, log *zap.Logger) (*Sender, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}
	ts, projectID, err := NewTokenSource(ctx, creds, cfg.TokenEarlyExpiry)
	if err != nil {
		return nil, err
	}
	if cfg.ProjectID != "" {
		projectID = cfg.ProjectID
	}
	if projectID == "" {
		return nil, errors.New("fcm: project id is empty")
	}

	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.L()
	}

	return &Sender{
		endpoint: fmt.Sprintf("%s/v1/projects/%s/messages:send", strings.TrimRight(base, "/"), projectID),
		ts:       ts,
		hc:       push.NewHTTPClient(timeout, cfg.MaxParallel),
		linkBase: cfg.LinkBaseURL,
		log:      log.With(zap.String("component", "push.fcm"), zap.String("project", projectID)),
	}, nil
}

func (s *Sender) Send(ctx context.Context, token string, m notification.Message) error {
	ctx, span := otel.Tracer("push.fcm").Start(ctx, "fcm.send", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	at, err := s.ts.Token()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: access token: %w", notification.ErrProviderUnavailable, err)
	}

	var (
		status int
		raw    string
	)
	err = requests.URL(s.endpoint).
		Client(s.hc).
		Post().
		Bearer(at.AccessToken).
		BodyJSON(newSendRequest(token, m, s.linkBase)).
		AddValidator(func(res *http.Response) error {
			status = res.StatusCode
			return nil
		}).
		ToString(&raw).
		Fetch(ctx)
	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %w", notification.ErrProviderUnavailable, err)
	}
	if status >= 200 && status < 300 {
		return nil
	}

	err = classify(status, raw)
	span.RecordError(err)
	return err
}

// classify maps an FCM error body to the taxonomy. Token problems are the
// caller's data; everything else is the provider's.
func classify(status int, raw string) error {
	var er errorResponse
	_ = json.Unmarshal([]byte(raw), &er)

	code := er.Error.Status
	for _, d := range er.Error.Details {
		if d.ErrorCode != "" {
			code = d.ErrorCode
		}
	}

	switch {
	case code == "UNREGISTERED", status == http.StatusNotFound,
		status == http.StatusBadRequest && code == "INVALID_ARGUMENT":
		return fmt.Errorf("%w: %d %s: %s", notification.ErrTokenInvalid, status, code, er.Error.Message)
	default:
		return fmt.Errorf("%w: %d %s: %s", notification.ErrProviderUnavailable, status, code, er.Error.Message)
	}
}
