package models

import "time"

// ReactionType is a per-user vote on a post.
type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionDislike ReactionType = "dislike"
)

// IsValid reports whether t is like or dislike.
func (t ReactionType) IsValid() bool {
	return t == ReactionLike || t == ReactionDislike
}

// CounterColumn is the posts column tracking reactions of this type.
func (t ReactionType) CounterColumn() string {
	if t == ReactionDislike {
		return "dislikes"
	}
	return "likes"
}

// Reaction is the single vote a user holds on a post.
type Reaction struct {
	PostID    string       `gorm:"primaryKey;type:varchar(36)" json:"post_id"`
	UserID    string       `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Type      ReactionType `gorm:"type:varchar(16);not null" json:"type"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ReactionResult is the outcome of toggling a reaction.
type ReactionResult struct {
	PostID   string        `json:"post_id"`
	Current  *ReactionType `json:"current"`
	Likes    int64         `json:"likes"`
	Dislikes int64         `json:"dislikes"`
}
