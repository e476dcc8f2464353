package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	errUnauthenticated = errors.New("missing or invalid credentials")
	errForbidden       = errors.New("token does not belong to this user")
)

type AuthConfig struct {
	Enable     bool   `mapstructure:"enable"`
	APIKeyHash string `mapstructure:"api_key_hash"`
	JWTSecret  string `mapstructure:"jwt_secret"`
}

// authenticator checks the two caller kinds: backend callers present an
// Apikey whose bcrypt hash is configured, end users present an HS256 JWT.
type authenticator struct {
	enabled    bool
	apiKeyHash []byte
	jwtSecret  []byte
}

func newAuthenticator(c AuthConfig) *authenticator {
	return &authenticator{
		enabled:    c.Enable,
		apiKeyHash: []byte(c.APIKeyHash),
		jwtSecret:  []byte(c.JWTSecret),
	}
}

func (a *authenticator) checkAPIKey(r *http.Request) error {
	if !a.enabled {
		return nil
	}
	key := r.Header.Get("Apikey")
	if key == "" || len(a.apiKeyHash) == 0 {
		return errUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword(a.apiKeyHash, []byte(key)); err != nil {
		return errUnauthenticated
	}
	return nil
}

func (a *authenticator) subject(r *http.Request) (string, error) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" || len(a.jwtSecret) == 0 {
		return "", errUnauthenticated
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || claims.Subject == "" {
		return "", errUnauthenticated
	}
	return claims.Subject, nil
}

// requireUser passes only when the bearer token's subject is userID.
func (a *authenticator) requireUser(r *http.Request, userID string) error {
	if !a.enabled {
		return nil
	}
	sub, err := a.subject(r)
	if err != nil {
		return err
	}
	if sub != userID {
		return errForbidden
	}
	return nil
}

func authStatus(err error) int {
	if errors.Is(err, errForbidden) {
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}
