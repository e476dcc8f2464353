package notification

import (
	"time"
)

// Intent is one recipient's copy of a logical notification event. Only Read
// changes after creation.
type Intent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	NoteID    *string   `json:"note_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is what reaches a device: the provider payload minus addressing.
type Message struct {
	Title  string
	Body   string
	NoteID string
}

func (i *Intent) Message() Message {
	m := Message{Title: i.Title, Body: i.Body}
	if i.NoteID != nil {
		m.NoteID = *i.NoteID
	}
	return m
}

// Created is the trigger event relayed from the outbox to the push dispatcher.
type Created struct {
	NotificationID string    `json:"notification_id" validate:"required"`
	UserID         string    `json:"user_id" validate:"required"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	NoteID         *string   `json:"note_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (i *Intent) Created() Created {
	return Created{
		NotificationID: i.ID,
		UserID:         i.UserID,
		Title:          i.Title,
		Body:           i.Body,
		NoteID:         i.NoteID,
		CreatedAt:      i.CreatedAt,
	}
}

func (c Created) Message() Message {
	m := Message{Title: c.Title, Body: c.Body}
	if c.NoteID != nil {
		m.NoteID = *c.NoteID
	}
	return m
}

// OutboxKey is the idempotency key of the trigger row for an intent.
func OutboxKey(intentID string) string {
	return "notification:" + intentID
}
