package push

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials(t *testing.T) {
	_, err := Config{}.Credentials()
	require.ErrorIs(t, err, ErrNoCredentials)
	assert.False(t, Config{}.Configured())

	b, err := Config{CredentialsJSON: `{"a":1}`, CredentialsFile: "/nonexistent"}.Credentials()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(b))

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"b":2}`), 0o600))
	b, err = Config{CredentialsFile: path}.Credentials()
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(b))

	_, err = Config{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")}.Credentials()
	require.Error(t, err)
}

func TestNewHTTPClient_DoesNotFollowRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(time.Second, 4).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
}
