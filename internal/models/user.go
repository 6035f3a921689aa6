package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnnamedAuthor and AnonymousAuthor are the author labels used when a post
// carries no usable display name.
const (
	UnnamedAuthor   = "Unnamed Author"
	AnonymousAuthor = "Anonymous"
)

// SocialLinks is the fixed set of profile links.
type SocialLinks struct {
	Twitter   string `json:"twitter"`
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
	LinkedIn  string `json:"linkedin"`
}

// User is a registered member. Authentication happens elsewhere; the ID is
// the subject of the bearer token.
type User struct {
	ID          string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	DisplayName string      `json:"display_name"`
	Email       string      `gorm:"index" json:"email"`
	PhotoURL    string      `json:"photo_url"`
	PhotoKey    string      `json:"-"`
	IsModerator bool        `gorm:"not null;default:false" json:"is_moderator"`
	SocialLinks SocialLinks `gorm:"serializer:json;type:text" json:"social_links"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Name returns the display name, falling back to first and last name.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	if name := strings.TrimSpace(u.DisplayName); name != "" {
		return name
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
