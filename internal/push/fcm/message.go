package fcm

import (
	"github.com/NordCoder/Gorev/internal/domain/notification"
)

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notificationBody  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
	Webpush      *webpush          `json:"webpush,omitempty"`
}

type notificationBody struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type webpush struct {
	FCMOptions webpushOptions `json:"fcm_options"`
}

type webpushOptions struct {
	Link string `json:"link"`
}

func newSendRequest(token string, m notification.Message, linkBase string) sendRequest {
	msg := message{
		Token:        token,
		Notification: notificationBody{Title: m.Title, Body: m.Body},
	}
	if m.NoteID != "" {
		msg.Data = map[string]string{"noteId": m.NoteID}
		if linkBase != "" {
			msg.Webpush = &webpush{FCMOptions: webpushOptions{Link: notification.AbsoluteLink(linkBase, m.NoteID)}}
		}
	}
	return sendRequest{Message: msg}
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type      string `json:"@type"`
			ErrorCode string `json:"errorCode"`
		} `json:"details"`
	} `json:"error"`
}
