// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusPending  PostStatus = "pending"
	PostStatusApproved PostStatus = "approved"
	PostStatusRejected PostStatus = "rejected"
	// PostStatusActive is the legacy synonym of approved written by the
	// unmoderated submission path.
	PostStatusActive PostStatus = "active"
)

// IsValid reports whether s is a known status.
func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusPending, PostStatusApproved, PostStatusRejected, PostStatusActive:
		return true
	}
	return false
}

// IsTerminal reports whether no further moderation transition is allowed.
func (s PostStatus) IsTerminal() bool {
	return s != PostStatusPending
}

// IsPublished reports whether posts in this state are visible in the feed.
func (s PostStatus) IsPublished() bool {
	return s == PostStatusApproved || s == PostStatusActive
}

// PublishedStatuses lists the statuses shown in public listings.
var PublishedStatuses = []PostStatus{PostStatusApproved, PostStatusActive}

// Post represents a user-submitted news item.
type Post struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title        string     `gorm:"not null" json:"title"`
	Content      string     `gorm:"type:text;not null" json:"content"`
	Category     string     `gorm:"not null;index" json:"category"`
	Images       []string   `gorm:"serializer:json;type:text" json:"images"`
	ImageKeys    []string   `gorm:"serializer:json;type:text" json:"-"`
	Thumbnails   []string   `gorm:"serializer:json;type:text" json:"thumbnails"`
	ThumbKeys    []string   `gorm:"serializer:json;type:text" json:"-"`
	AuthorID     string     `gorm:"not null;index;type:varchar(36)" json:"author_id"`
	AuthorName   string     `json:"author_name"`
	IsAnonymous  bool       `gorm:"not null;default:false" json:"is_anonymous"`
	Status       PostStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Likes        int64      `gorm:"not null;default:0" json:"likes"`
	Dislikes     int64      `gorm:"not null;default:0" json:"dislikes"`
	Views        int64      `gorm:"not null;default:0" json:"views"`
	SearchTokens []string   `gorm:"serializer:json;type:text" json:"-"`

	ModerationNote string     `json:"moderation_note,omitempty"`
	ModeratedBy    string     `gorm:"type:varchar(36)" json:"moderated_by,omitempty"`
	ModeratedAt    *time.Time `json:"moderated_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate assigns an identifier when none is set.
func (p *Post) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return nil
}

// PrimaryImage returns the first image URL, or "" when there is none.
func (p *Post) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// PostView records that a viewer has already been counted for a post.
type PostView struct {
	PostID    string    `gorm:"primaryKey;type:varchar(36)" json:"post_id"`
	ViewerKey string    `gorm:"primaryKey;type:varchar(128)" json:"viewer_key"`
	CreatedAt time.Time `json:"created_at"`
}
