package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
)

const Scope = "https://www.googleapis.com/auth/firebase.messaging"

const defaultEarlyExpiry = 5 * time.Minute

// exchanger performs a fresh RS256 assertion + JWT-bearer exchange on every call.
// Caching is left to the ReuseTokenSourceWithExpiry wrapping it, so renewal
// happens earlyExpiry before the provider's one-hour lifetime ends.
type exchanger struct {
	ctx context.Context
	cfg *jwt.Config
}

func (e exchanger) Token() (*oauth2.Token, error) {
	return e.cfg.TokenSource(e.ctx).Token()
}

// NewTokenSource returns a cached access-token source for the service account
// in credsJSON together with the project id it names.
func NewTokenSource(ctx context.Context, credsJSON []byte, earlyExpiry time.Duration) (oauth2.TokenSource, string, error) {
	cfg, err := google.JWTConfigFromJSON(credsJSON, Scope)
	if err != nil {
		return nil, "", fmt.Errorf("parse service account: %w", err)
	}

	var sa struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(credsJSON, &sa); err != nil {
		return nil, "", fmt.Errorf("parse project id: %w", err)
	}

	if earlyExpiry <= 0 {
		earlyExpiry = defaultEarlyExpiry
	}
	return oauth2.ReuseTokenSourceWithExpiry(nil, exchanger{ctx: ctx, cfg: cfg}, earlyExpiry), sa.ProjectID, nil
}
