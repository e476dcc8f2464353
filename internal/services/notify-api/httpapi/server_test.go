package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/domain/token"
	"github.com/NordCoder/Gorev/internal/repository/postgres"
	"github.com/NordCoder/Gorev/internal/services/notify-api/tokens"
	"github.com/NordCoder/Gorev/internal/services/notify-api/writer"
)

type fakeWriter struct {
	got []writer.Request
	err error

	marked    []string
	listLimit int
}

func (f *fakeWriter) Notify(_ context.Context, req writer.Request) ([]*notification.Intent, error) {
	f.got = append(f.got, req)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*notification.Intent, 0, len(req.Recipients))
	for _, uid := range req.Recipients {
		out = append(out, &notification.Intent{ID: "id-" + uid, UserID: uid, Title: req.Title, Body: req.Body, NoteID: req.NoteID})
	}
	return out, nil
}

const aliceNote = "3f1c2a9e-8b7d-4c55-9a61-0e2f4b6d8c10"

func (f *fakeWriter) MarkRead(_ context.Context, userID, id string) error {
	f.marked = append(f.marked, id)
	if id != aliceNote || userID != "alice" {
		return postgres.ErrNotFound
	}
	return nil
}

func (f *fakeWriter) List(_ context.Context, userID string, limit int) ([]*notification.Intent, error) {
	f.listLimit = limit
	if userID != "alice" {
		return nil, nil
	}
	return []*notification.Intent{{ID: aliceNote, UserID: "alice", Title: "Shared"}}, nil
}

type fakeRegistry struct {
	registered map[string]string
	revoked    []string
	err        error
}

func (f *fakeRegistry) Register(_ context.Context, userID string, dt token.DeviceType, tok string) error {
	if f.err != nil {
		return f.err
	}
	if f.registered == nil {
		f.registered = map[string]string{}
	}
	f.registered[userID] = string(dt) + ":" + tok
	return nil
}

func (f *fakeRegistry) Revoke(_ context.Context, userID string) error {
	f.revoked = append(f.revoked, userID)
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Send(_ context.Context, tok string, _ notification.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tok)
	if strings.HasPrefix(tok, "dead") {
		return notification.ErrTokenInvalid
	}
	return nil
}

type harness struct {
	h        http.Handler
	writer   *fakeWriter
	registry *fakeRegistry
	sender   *fakeSender
}

func newHarness(t *testing.T, auth AuthConfig) *harness {
	t.Helper()
	hs := &harness{writer: &fakeWriter{}, registry: &fakeRegistry{}, sender: &fakeSender{}}
	srv := NewServer(hs.writer, hs.registry, Opts{Logger: zap.NewNop(), Auth: auth, Sender: hs.sender, MaxParallel: 4})
	h, err := srv.Handler()
	require.NoError(t, err)
	hs.h = h
	return hs
}

func (hs *harness) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	hs.h.ServeHTTP(rec, req)
	return rec
}

func TestPreflight(t *testing.T) {
	hs := newHarness(t, AuthConfig{})
	rec := hs.do(http.MethodOptions, "/send-notification", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Apikey")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestSendNotification(t *testing.T) {
	hs := newHarness(t, AuthConfig{})
	rec := hs.do(http.MethodPost, "/send-notification",
		`{"userIds":["alice","bob"],"title":"Task completed","body":"Buy milk","noteId":"n1"}`,
		map[string]string{"X-Request-ID": "req-1"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var resp struct {
		Success       bool                  `json:"success"`
		Count         int                   `json:"count"`
		Notifications []notification.Intent `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Notifications, 2)
	require.Len(t, hs.writer.got, 1)
	assert.Equal(t, []string{"alice", "bob"}, hs.writer.got[0].Recipients)
}

func TestSendNotificationErrors(t *testing.T) {
	cases := []struct {
		name, body string
		writeErr   error
		code       int
		msg        string
	}{
		{"empty user ids", `{"userIds":[],"title":"t"}`, nil, http.StatusBadRequest, "No user IDs provided"},
		{"missing user ids", `{"title":"t"}`, nil, http.StatusBadRequest, "No user IDs provided"},
		{"bad json", `{`, nil, http.StatusBadRequest, "invalid JSON body"},
		{"missing title", `{"userIds":["a"]}`, nil, http.StatusBadRequest, "invalid request"},
		{"store failure", `{"userIds":["a"],"title":"t"}`, notification.ErrStoreWrite, http.StatusInternalServerError, "failed to store"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hs := newHarness(t, AuthConfig{})
			hs.writer.err = tc.writeErr
			rec := hs.do(http.MethodPost, "/send-notification", tc.body, nil)
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.msg)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestSendNotificationFCM(t *testing.T) {
	hs := newHarness(t, AuthConfig{})
	rec := hs.do(http.MethodPost, "/send-notification-fcm",
		`{"tokens":["t1","dead-1","t2"],"title":"Shared","body":"List","noteId":"n1"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"success":true,"sent":2,"total":3}`, rec.Body.String())
	assert.ElementsMatch(t, []string{"t1", "dead-1", "t2"}, hs.sender.sent)

	rec = hs.do(http.MethodPost, "/send-notification-fcm", `{"tokens":[],"title":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No tokens provided")
}

func TestSendNotificationFCMWithoutProvider(t *testing.T) {
	srv := NewServer(&fakeWriter{}, &fakeRegistry{}, Opts{Logger: zap.NewNop()})
	h, err := srv.Handler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/send-notification-fcm", strings.NewReader(`{"tokens":["a"],"title":"t"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("server-key"), bcrypt.MinCost)
	require.NoError(t, err)
	hs := newHarness(t, AuthConfig{Enable: true, APIKeyHash: string(hash), JWTSecret: "s"})
	body := `{"userIds":["a"],"title":"t"}`

	assert.Equal(t, http.StatusUnauthorized, hs.do(http.MethodPost, "/send-notification", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized,
		hs.do(http.MethodPost, "/send-notification", body, map[string]string{"Apikey": "wrong"}).Code)
	assert.Equal(t, http.StatusOK,
		hs.do(http.MethodPost, "/send-notification", body, map[string]string{"Apikey": "server-key"}).Code)
}

func signUser(t *testing.T, secret, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRegisterTokenRequiresOwnJWT(t *testing.T) {
	hs := newHarness(t, AuthConfig{Enable: true, JWTSecret: "jwt-secret"})
	body := `{"userId":"alice","deviceType":"web","token":"fcm-token"}`

	assert.Equal(t, http.StatusUnauthorized, hs.do(http.MethodPost, "/v1/tokens", body, nil).Code)
	assert.Equal(t, http.StatusForbidden, hs.do(http.MethodPost, "/v1/tokens", body,
		map[string]string{"Authorization": signUser(t, "jwt-secret", "bob")}).Code)
	assert.Equal(t, http.StatusUnauthorized, hs.do(http.MethodPost, "/v1/tokens", body,
		map[string]string{"Authorization": signUser(t, "other-secret", "alice")}).Code)

	rec := hs.do(http.MethodPost, "/v1/tokens", body, map[string]string{"Authorization": signUser(t, "jwt-secret", "alice")})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "web:fcm-token", hs.registry.registered["alice"])
}

func TestRegisterTokenValidation(t *testing.T) {
	hs := newHarness(t, AuthConfig{})

	rec := hs.do(http.MethodPost, "/v1/tokens", `{"userId":"alice","deviceType":"fridge","token":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = hs.do(http.MethodPost, "/v1/tokens", `{"userId":"alice","token":"x"}`, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "web:x", hs.registry.registered["alice"])

	hs.registry.err = errors.Join(notification.ErrStoreWrite, errors.New("tx aborted"))
	rec = hs.do(http.MethodPost, "/v1/tokens", `{"userId":"alice","token":"y"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	hs.registry.err = tokens.ErrDeviceType
	rec = hs.do(http.MethodPost, "/v1/tokens", `{"userId":"alice","token":"y"}`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRevokeToken(t *testing.T) {
	hs := newHarness(t, AuthConfig{})
	rec := hs.do(http.MethodDelete, "/v1/tokens/alice", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"alice"}, hs.registry.revoked)
}

func TestMarkRead(t *testing.T) {
	hs := newHarness(t, AuthConfig{})
	assert.Equal(t, http.StatusNoContent, hs.do(http.MethodPost, "/v1/notifications/"+aliceNote+"/read", `{"userId":"alice"}`, nil).Code)
	assert.Equal(t, http.StatusNotFound, hs.do(http.MethodPost, "/v1/notifications/"+aliceNote+"/read", `{"userId":"bob"}`, nil).Code)
}

func TestMarkReadMalformedIDIsNotFound(t *testing.T) {
	hs := newHarness(t, AuthConfig{})
	rec := hs.do(http.MethodPost, "/v1/notifications/n2/read", `{"userId":"alice"}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, hs.writer.marked, 1, "only the well-formed id reaches the writer")
}

func TestListNotifications(t *testing.T) {
	hs := newHarness(t, AuthConfig{})

	rec := hs.do(http.MethodGet, "/v1/users/alice/notifications?limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, hs.writer.listLimit)
	var body struct {
		Notifications []notification.Intent `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Notifications, 1)
	assert.Equal(t, aliceNote, body.Notifications[0].ID)

	rec = hs.do(http.MethodGet, "/v1/users/bob/notifications", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"notifications":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, hs.do(http.MethodGet, "/v1/users/alice/notifications?limit=x", "", nil).Code)
}
