package entity

import (
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
}

func NewNotification(message string, kind NotificationKind) Notification {
	return Notification{
		ID:        uuid.New(),
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
