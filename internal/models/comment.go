package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnnamedUser is shown for commenters without a display name.
const UnnamedUser = "Unnamed User"

// Comment is an immutable reply on a post.
type Comment struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID     string    `gorm:"not null;index;type:varchar(36)" json:"post_id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	AuthorID   string    `gorm:"not null;type:varchar(36)" json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

func (c *Comment) BeforeCreate(_ *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}
