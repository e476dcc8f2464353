package device

import (
	"context"

	"github.com/NordCoder/Gorev/internal/domain/token"
)

type Permission int

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

// Platform is the host's notification permission API.
type Platform interface {
	Supported() bool
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
}

// PushService is the provider client on the device.
type PushService interface {
	// Token returns the provider registration token for this device.
	Token(ctx context.Context, vapidKey string) (string, error)
	// Unsubscribe drops the live provider subscription, if any.
	Unsubscribe(ctx context.Context) error
}

// Registry stores the device token server side. RegistryClient implements it.
type Registry interface {
	Register(ctx context.Context, userID string, deviceType token.DeviceType, tok string) error
	Revoke(ctx context.Context, userID string) error
}

// Messenger shows setup results to the user.
type Messenger interface {
	Notify(msg string)
}
