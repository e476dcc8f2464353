package device

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/NordCoder/Gorev/internal/agent"
	"github.com/NordCoder/Gorev/internal/domain/notification"
	"github.com/NordCoder/Gorev/internal/domain/token"
	"github.com/NordCoder/Gorev/internal/obs"
)

const (
	msgUnsupported = "This device does not support notifications."
	msgDenied      = "Notification permission was denied. Allow it in the browser settings."
	msgNoVAPID     = "Push key is not configured."
	msgNoToken     = "Could not get a push token. Try again."
	msgStoreFailed = "Could not save the push token: %v"
	msgEnabled     = "Notifications enabled."
	msgSetupFailed = "Notification setup failed: %v"
)

// Enroller implements the client-side enrolment functions: permission,
// agent installation, provider token and registry write.
type Enroller struct {
	Platform  Platform
	Push      PushService
	Registry  Registry
	Messenger Messenger
	Installer *agent.Installer
	Agent     *agent.Agent
	// NewAgent builds a replacement once Agent has been unregistered, so
	// notifications can be enabled again after being disabled.
	NewAgent   func() *agent.Agent
	VAPIDKey   string
	DeviceType token.DeviceType
	Log        *zap.Logger
}

// RequestNotificationPermission runs the whole enrolment. Every failure is
// reported to the user and yields false.
func (e *Enroller) RequestNotificationPermission(ctx context.Context, userID string) bool {
	err := e.enroll(ctx, userID)
	if err == nil {
		e.Messenger.Notify(msgEnabled)
		return true
	}

	e.logger().Warn("notification enrolment failed", zap.String("user_id", userID), zap.Error(err))
	e.Messenger.Notify(userMessage(err))
	return false
}

func (e *Enroller) enroll(ctx context.Context, userID string) error {
	if !e.Platform.Supported() {
		return notification.ErrUnsupported
	}

	perm, err := e.Platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("request permission: %w", err)
	}
	if perm != PermissionGranted {
		return notification.ErrPermissionDenied
	}

	if e.Installer != nil {
		if _, err := e.Installer.Install(ctx); err != nil {
			return fmt.Errorf("%w: install agent: %w", notification.ErrProviderUnavailable, err)
		}
	}
	if err := e.ensureAgent(ctx); err != nil {
		return err
	}

	if e.VAPIDKey == "" {
		return notification.ErrMissingVAPIDKey
	}

	tok, err := e.Push.Token(ctx, e.VAPIDKey)
	if err != nil {
		return fmt.Errorf("%w: %w", notification.ErrProviderUnavailable, err)
	}
	if tok == "" {
		return fmt.Errorf("%w: empty token", notification.ErrProviderUnavailable)
	}

	dt := e.DeviceType
	if dt == "" {
		dt = token.DeviceWeb
	}
	if err := e.Registry.Register(ctx, userID, dt, tok); err != nil {
		if !errors.Is(err, notification.ErrStoreWrite) {
			err = fmt.Errorf("%w: %w", notification.ErrStoreWrite, err)
		}
		return err
	}
	e.logger().Info("notifications enabled", zap.String("user_id", userID), obs.TokenPrefix(tok))
	return nil
}

// ensureAgent leaves an Active agent behind. An unregistered one is terminal
// and gets swapped for a fresh instance from NewAgent.
func (e *Enroller) ensureAgent(ctx context.Context) error {
	if e.Agent == nil || e.Agent.State() == agent.StateUnregistered {
		switch {
		case e.NewAgent != nil:
			e.Agent = e.NewAgent()
		case e.Agent == nil:
			return nil
		default:
			return fmt.Errorf("delivery agent unregistered: %w", notification.ErrNotActive)
		}
	}
	if e.Agent.State() == agent.StateUninitialized {
		if err := e.Agent.Install(ctx); err != nil {
			return fmt.Errorf("%w: %w", notification.ErrProviderUnavailable, err)
		}
	}
	return nil
}

func (e *Enroller) CheckNotificationPermission() bool {
	return e.Platform.Supported() && e.Platform.Permission() == PermissionGranted
}

// UnregisterNotifications drops the provider subscription first so it cannot
// outlive the stored token. Unsubscribe failures are logged and ignored.
func (e *Enroller) UnregisterNotifications(ctx context.Context, userID string) error {
	log := e.logger()
	if err := e.Push.Unsubscribe(ctx); err != nil {
		log.Warn("unsubscribe push", zap.String("user_id", userID), zap.Error(err))
	}
	if err := e.Registry.Revoke(ctx, userID); err != nil {
		return fmt.Errorf("revoke tokens: %w", err)
	}
	if e.Agent != nil {
		e.Agent.Unregister(ctx)
	}
	log.Info("notifications disabled", zap.String("user_id", userID))
	return nil
}

func (e *Enroller) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log.With(zap.String("component", "device"))
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, notification.ErrUnsupported):
		return msgUnsupported
	case errors.Is(err, notification.ErrPermissionDenied):
		return msgDenied
	case errors.Is(err, notification.ErrMissingVAPIDKey):
		return msgNoVAPID
	case errors.Is(err, notification.ErrProviderUnavailable):
		return msgNoToken
	case errors.Is(err, notification.ErrStoreWrite):
		return fmt.Sprintf(msgStoreFailed, err)
	}
	return fmt.Sprintf(msgSetupFailed, err)
}
