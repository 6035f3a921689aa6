package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType classifies notifications.
type NotificationType string

const (
	NotificationModeration NotificationType = "moderation"
	NotificationSystem     NotificationType = "system"
)

// Notification is a message addressed to a single user.
type Notification struct {
	ID        string           `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID    string           `gorm:"not null;type:varchar(36);index:idx_notifications_user_read" json:"user_id"`
	Type      NotificationType `gorm:"type:varchar(16);not null" json:"type"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	PostID    *string          `gorm:"type:varchar(36)" json:"post_id,omitempty"`
	Read      bool             `gorm:"not null;default:false;index:idx_notifications_user_read" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (n *Notification) BeforeCreate(_ *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	return nil
}
