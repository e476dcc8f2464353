package notification

import "errors"

var (
	// ErrPermissionDenied: the user declined push permission. Only the user can fix it.
	ErrPermissionDenied = errors.New("notification permission denied")
	// ErrProviderUnavailable covers credential, handshake and provider-side failures.
	// Re-running registration or the send may succeed.
	ErrProviderUnavailable = errors.New("push provider unavailable")
	// ErrTokenInvalid: the provider rejected a stored registration token.
	ErrTokenInvalid = errors.New("registration token rejected")
	// ErrStoreWrite: an intent or token could not be persisted; nothing was kept.
	ErrStoreWrite = errors.New("store write failed")

	ErrUnsupported     = errors.New("push notifications not supported on this device")
	ErrMissingVAPIDKey = errors.New("vapid key not configured")
	ErrNotActive       = errors.New("delivery agent not active")
)
