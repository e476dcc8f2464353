package httpapi

import "github.com/NordCoder/Gorev/internal/domain/notification"

type sendNotificationRequest struct {
	UserIDs []string `json:"userIds" validate:"dive,required,max=128"`
	Title   string   `json:"title" validate:"required,max=256"`
	Body    string   `json:"body" validate:"max=4096"`
	NoteID  *string  `json:"noteId" validate:"omitempty,max=128"`
}

type sendNotificationResponse struct {
	Success       bool                   `json:"success"`
	Count         int                    `json:"count"`
	Notifications []*notification.Intent `json:"notifications"`
}

type sendFCMRequest struct {
	Tokens []string `json:"tokens" validate:"dive,required"`
	Title  string   `json:"title" validate:"required,max=256"`
	Body   string   `json:"body" validate:"max=4096"`
	NoteID *string  `json:"noteId" validate:"omitempty,max=128"`
}

type sendFCMResponse struct {
	Success bool `json:"success"`
	Sent    int  `json:"sent"`
	Total   int  `json:"total"`
}

type registerTokenRequest struct {
	UserID     string `json:"userId" validate:"required,max=128"`
	DeviceType string `json:"deviceType" validate:"omitempty,oneof=web android ios"`
	Token      string `json:"token" validate:"required,max=4096"`
}

type markReadRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

type listNotificationsResponse struct {
	Notifications []*notification.Intent `json:"notifications"`
}

type errorResponse struct {
	Error string `json:"error"`
}
