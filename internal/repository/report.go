package repository

import (
	"context"
	"time"

	"habersin/internal/models"

	"gorm.io/gorm"
)

// ReportRepository defines persistence operations for reports.
type ReportRepository interface {
	// Create returns an error wrapping ErrDuplicate when the reporter has
	// already reported the post.
	Create(ctx context.Context, report *models.Report) error
	Exists(ctx context.Context, postID, reporterID string) (bool, error)
	ListByStatus(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error)
	MarkReviewed(ctx context.Context, id, reviewerID string, at time.Time) error
	DeleteByPost(ctx context.Context, postID string) error
}

type reportRepository struct {
	db *gorm.DB
}

func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	return classify(r.db.WithContext(ctx).Create(report).Error, "Report", report.ID)
}

func (r *reportRepository) Exists(ctx context.Context, postID, reporterID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("post_id = ? AND reporter_id = ?", postID, reporterID).
		Count(&count).Error
	if err != nil {
		return false, classify(err, "Report", postID)
	}
	return count > 0, nil
}

func (r *reportRepository) ListByStatus(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error) {
	var reports []models.Report
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&reports).Error
	return reports, classify(err, "Report", "")
}

func (r *reportRepository) MarkReviewed(ctx context.Context, id, reviewerID string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Report{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.ReportStatusReviewed,
			"reviewed_by": reviewerID,
			"reviewed_at": at,
		})
	if res.Error != nil {
		return classify(res.Error, "Report", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Report", id)
	}
	return nil
}

func (r *reportRepository) DeleteByPost(ctx context.Context, postID string) error {
	return classify(r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&models.Report{}).Error, "Report", postID)
}
