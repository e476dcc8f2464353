package device

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/carlmjohnson/requests"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/domain/token"
)

// RegistryClient calls the notify-api token endpoints.
type RegistryClient struct {
	BaseURL string
	// AccessToken returns the user's bearer token.
	AccessToken func(ctx context.Context) (string, error)
	HTTP        *http.Client
}

var _ Registry = (*RegistryClient)(nil)

func NewRegistryClient(baseURL string, accessToken func(context.Context) (string, error)) *RegistryClient {
	return &RegistryClient{
		BaseURL:     baseURL,
		AccessToken: accessToken,
		HTTP:        &http.Client{Timeout: 10 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

type registerBody struct {
	UserID     string           `json:"userId"`
	DeviceType token.DeviceType `json:"deviceType"`
	Token      string           `json:"token"`
}

func (c *RegistryClient) Register(ctx context.Context, userID string, deviceType token.DeviceType, tok string) error {
	rb, err := c.builder(ctx)
	if err != nil {
		return err
	}
	err = rb.Path("/v1/tokens").
		Post().
		BodyJSON(registerBody{UserID: userID, DeviceType: deviceType, Token: tok}).
		CheckStatus(http.StatusNoContent).
		Fetch(ctx)
	if err != nil {
		return fmt.Errorf("%w: register token: %w", notification.ErrStoreWrite, err)
	}
	return nil
}

func (c *RegistryClient) Revoke(ctx context.Context, userID string) error {
	rb, err := c.builder(ctx)
	if err != nil {
		return err
	}
	err = rb.Path("/v1/tokens/" + url.PathEscape(userID)).
		Delete().
		CheckStatus(http.StatusNoContent).
		Fetch(ctx)
	if err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	return nil
}

func (c *RegistryClient) builder(ctx context.Context) (*requests.Builder, error) {
	rb := requests.URL(c.BaseURL)
	if c.HTTP != nil {
		rb = rb.Client(c.HTTP)
	}
	if c.AccessToken != nil {
		at, err := c.AccessToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("access token: %w", err)
		}
		rb = rb.Bearer(at)
	}
	return rb, nil
}
