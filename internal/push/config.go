package push

import (
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	DriverFCM      = "fcm"
	DriverFirebase = "firebase"
)

// Config is shared by every binary that talks to the push provider.
// The service-account key is never part of the source tree: it arrives either
// inline through PUSH_CREDENTIALS_JSON or as a mounted file.
type Config struct {
	Driver           string        `mapstructure:"driver"`
	CredentialsJSON  string        `mapstructure:"credentials_json"`
	CredentialsFile  string        `mapstructure:"credentials_file"`
	ProjectID        string        `mapstructure:"project_id"`
	BaseURL          string        `mapstructure:"base_url"`
	LinkBaseURL      string        `mapstructure:"link_base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxParallel      int           `mapstructure:"max_parallel"`
	TokenEarlyExpiry time.Duration `mapstructure:"token_early_expiry"`
}

var ErrNoCredentials = errors.New("push credentials not configured")

// Credentials returns the service-account JSON, preferring the inline value.
func (c Config) Credentials() ([]byte, error) {
	if c.CredentialsJSON != "" {
		return []byte(c.CredentialsJSON), nil
	}
	if c.CredentialsFile == "" {
		return nil, ErrNoCredentials
	}
	b, err := os.ReadFile(c.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return b, nil
}

func (c Config) Configured() bool {
	return c.CredentialsJSON != "" || c.CredentialsFile != ""
}
