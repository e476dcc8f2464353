package token

import "time"

type DeviceType string

const (
	DeviceWeb     DeviceType = "web"
	DeviceAndroid DeviceType = "android"
	DeviceIOS     DeviceType = "ios"
)

func (d DeviceType) Valid() bool {
	switch d {
	case DeviceWeb, DeviceAndroid, DeviceIOS:
		return true
	}
	return false
}

// Token is a provider-issued push address for one of a user's devices.
// Rows are replaced wholesale on re-registration, never updated in place.
type Token struct {
	ID         int64      `json:"id"`
	UserID     string     `json:"user_id"`
	Token      string     `json:"token"`
	DeviceType DeviceType `json:"device_type"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
