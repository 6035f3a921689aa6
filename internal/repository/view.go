package repository

import (
	"context"

	"habersin/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ViewRepository remembers which viewers have been counted for a post.
type ViewRepository interface {
	// Record stores the (post, viewer) pair and reports whether it was new.
	Record(ctx context.Context, postID, viewerKey string) (bool, error)
	DeleteByPost(ctx context.Context, postID string) error
}

type viewRepository struct {
	db *gorm.DB
}

func (r *viewRepository) Record(ctx context.Context, postID, viewerKey string) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.PostView{PostID: postID, ViewerKey: viewerKey})
	if res.Error != nil {
		return false, classify(res.Error, "PostView", postID)
	}
	return res.RowsAffected > 0, nil
}

func (r *viewRepository) DeleteByPost(ctx context.Context, postID string) error {
	return classify(r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.PostView{}).Error, "PostView", postID)
}
