package repository

import (
	"context"

	"habersin/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	// ListByPost returns the newest comments first.
	ListByPost(ctx context.Context, postID string, limit int) ([]models.Comment, error)
	DeleteByPost(ctx context.Context, postID string) error
}

type commentRepository struct {
	db *gorm.DB
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return classify(r.db.WithContext(ctx).Create(comment).Error, "Comment", comment.ID)
}

func (r *commentRepository) ListByPost(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	var comments []models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&comments).Error
	return comments, classify(err, "Comment", postID)
}

func (r *commentRepository) DeleteByPost(ctx context.Context, postID string) error {
	return classify(r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Comment{}).Error, "Comment", postID)
}
