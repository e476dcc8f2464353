package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/domain/token"
	"github.com/NordCoder/Gorev/internal/obs"
	"github.com/NordCoder/Gorev/internal/push"
	"github.com/NordCoder/Gorev/internal/repository/postgres"
	"github.com/NordCoder/Gorev/internal/services/notify-api/tokens"
	"github.com/NordCoder/Gorev/internal/services/notify-api/writer"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "notify_api_requests_total",
	Help: "HTTP requests by route and status.",
}, []string{"route", "status"})

type NotificationWriter interface {
	Notify(ctx context.Context, req writer.Request) ([]*notification.Intent, error)
	MarkRead(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string, limit int) ([]*notification.Intent, error)
}

type TokenRegistry interface {
	Register(ctx context.Context, userID string, dt token.DeviceType, tok string) error
	Revoke(ctx context.Context, userID string) error
}

type Opts struct {
	Logger      *zap.Logger
	Auth        AuthConfig
	MaxParallel int
	// Sender may be nil; /send-notification-fcm then answers 500.
	Sender notification.Sender
}

type Server struct {
	writer   NotificationWriter
	registry TokenRegistry
	sender   notification.Sender
	auth     *authenticator
	validate *validator.Validate
	log      *zap.Logger

	maxParallel int
}

func NewServer(w NotificationWriter, reg TokenRegistry, o Opts) *Server {
	log := o.Logger
	if log == nil {
		log = zap.L()
	}
	return &Server{
		writer:      w,
		registry:    reg,
		sender:      o.Sender,
		auth:        newAuthenticator(o.Auth),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		log:         log.With(zap.String("component", "notify-api.http")),
		maxParallel: o.MaxParallel,
	}
}

// Register mounts the routes on a grpc-gateway mux.
func (s *Server) Register(mux *runtime.ServeMux) error {
	routes := []struct {
		method, pattern, name string
		h                     runtime.HandlerFunc
	}{
		{http.MethodPost, "/send-notification", "send_notification", s.sendNotification},
		{http.MethodPost, "/send-notification-fcm", "send_notification_fcm", s.sendNotificationFCM},
		{http.MethodPost, "/v1/tokens", "register_token", s.registerToken},
		{http.MethodDelete, "/v1/tokens/{user_id}", "revoke_token", s.revokeToken},
		{http.MethodPost, "/v1/notifications/{id}/read", "mark_read", s.markRead},
		{http.MethodGet, "/v1/users/{user_id}/notifications", "list_notifications", s.listNotifications},
	}
	for _, rt := range routes {
		if err := mux.HandlePath(rt.method, rt.pattern, instrumented(rt.name, rt.h)); err != nil {
			return err
		}
	}
	return nil
}

// Handler is the full HTTP surface: CORS and request ids around the routes.
func (s *Server) Handler() (http.Handler, error) {
	mux := runtime.NewServeMux()
	if err := s.Register(mux); err != nil {
		return nil, err
	}
	return requestID(cors(mux)), nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func instrumented(route string, h runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r, params)
		requestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}

func (s *Server) sendNotification(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ctx := r.Context()
	log := obs.WithTrace(ctx, s.log)

	if err := s.auth.checkAPIKey(r); err != nil {
		writeError(w, authStatus(err), err.Error())
		return
	}
	var req sendNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.UserIDs) == 0 {
		writeError(w, http.StatusBadRequest, "No user IDs provided")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	intents, err := s.writer.Notify(ctx, writer.Request{
		Recipients: req.UserIDs,
		Title:      req.Title,
		Body:       req.Body,
		NoteID:     req.NoteID,
	})
	if err != nil {
		log.Error("send-notification failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store notifications")
		return
	}

	writeJSON(w, http.StatusOK, sendNotificationResponse{
		Success:       true,
		Count:         len(intents),
		Notifications: intents,
	})
}

func (s *Server) sendNotificationFCM(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	ctx := r.Context()
	log := obs.WithTrace(ctx, s.log)

	if err := s.auth.checkAPIKey(r); err != nil {
		writeError(w, authStatus(err), err.Error())
		return
	}
	if s.sender == nil {
		writeError(w, http.StatusInternalServerError, "push provider not configured")
		return
	}
	var req sendFCMRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Tokens) == 0 {
		writeError(w, http.StatusBadRequest, "No tokens provided")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	msg := notification.Message{Title: req.Title, Body: req.Body}
	if req.NoteID != nil {
		msg.NoteID = *req.NoteID
	}
	rep := push.FanOut(ctx, s.sender, req.Tokens, msg, s.maxParallel, log)
	log.Info("direct push sent", zap.Int("sent", rep.Sent), zap.Int("total", rep.Total))

	writeJSON(w, http.StatusOK, sendFCMResponse{Success: true, Sent: rep.Sent, Total: rep.Total})
}

func (s *Server) registerToken(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	var req registerTokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if err := s.auth.requireUser(r, req.UserID); err != nil {
		writeError(w, authStatus(err), err.Error())
		return
	}

	dt := token.DeviceType(req.DeviceType)
	if dt == "" {
		dt = token.DeviceWeb
	}
	if err := s.registry.Register(r.Context(), req.UserID, dt, req.Token); err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request, params map[string]string) {
	userID := params["user_id"]
	if err := s.auth.requireUser(r, userID); err != nil {
		writeError(w, authStatus(err), err.Error())
		return
	}
	if err := s.registry.Revoke(r.Context(), userID); err != nil {
		s.writeRegistryError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request, params map[string]string) {
	var req markReadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	if err := s.auth.requireUser(r, req.UserID); err != nil {
		writeError(w, authStatus(err), err.Error())
		return
	}

	id := params["id"]
	if s.validate.Var(id, "uuid") != nil {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	err := s.writer.MarkRead(r.Context(), req.UserID, id)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, postgres.ErrNotFound):
		writeError(w, http.StatusNotFound, "notification not found")
	default:
		obs.WithTrace(r.Context(), s.log).Error("mark read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update notification")
	}
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request, params map[string]string) {
	userID := params["user_id"]
	if err := s.auth.requireUser(r, userID); err != nil {
		writeError(w, authStatus(err), err.Error())
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	intents, err := s.writer.List(r.Context(), userID, limit)
	if err != nil {
		obs.WithTrace(r.Context(), s.log).Error("list notifications failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load notifications")
		return
	}
	if intents == nil {
		intents = []*notification.Intent{}
	}
	writeJSON(w, http.StatusOK, listNotificationsResponse{Notifications: intents})
}

func (s *Server) writeRegistryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tokens.ErrEmptyUser), errors.Is(err, tokens.ErrEmptyToken), errors.Is(err, tokens.ErrDeviceType):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		obs.WithTrace(r.Context(), s.log).Error("token registry failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to store token")
	}
}
