package repository

import (
	"context"
	"errors"

	"habersin/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReactionRepository stores one reaction per (post, user).
type ReactionRepository interface {
	// Get returns the user's reaction, or nil when there is none.
	Get(ctx context.Context, postID, userID string) (*models.Reaction, error)
	Upsert(ctx context.Context, reaction *models.Reaction) error
	Delete(ctx context.Context, postID, userID string) error
	DeleteByPost(ctx context.Context, postID string) error
}

type reactionRepository struct {
	db *gorm.DB
}

func (r *reactionRepository) Get(ctx context.Context, postID, userID string) (*models.Reaction, error) {
	var reaction models.Reaction
	err := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).First(&reaction).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err, "Reaction", postID)
	}
	return &reaction, nil
}

func (r *reactionRepository) Upsert(ctx context.Context, reaction *models.Reaction) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
	}).Create(reaction).Error
	return classify(err, "Reaction", reaction.PostID)
}

func (r *reactionRepository) Delete(ctx context.Context, postID, userID string) error {
	err := r.db.WithContext(ctx).Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.Reaction{}).Error
	return classify(err, "Reaction", postID)
}

func (r *reactionRepository) DeleteByPost(ctx context.Context, postID string) error {
	return classify(r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Reaction{}).Error, "Reaction", postID)
}
