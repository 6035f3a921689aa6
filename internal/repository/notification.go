package repository

import (
	"context"
	"time"

	"habersin/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	// ListUnread returns the user's unread notifications, newest first.
	ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id string, at time.Time) error
}

type notificationRepository struct {
	db *gorm.DB
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return classify(r.db.WithContext(ctx).Create(n).Error, "Notification", n.ID)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		return nil, classify(err, "Notification", id)
	}
	return &n, nil
}

func (r *notificationRepository) ListUnread(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	var list []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND read = ?", userID, false).
		Order("created_at DESC").
		Order("id DESC").
		Limit(clampLimit(limit)).
		Find(&list).Error
	return list, classify(err, "Notification", userID)
}

func (r *notificationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error
	return count, classify(err, "Notification", userID)
}

func (r *notificationRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"read": true, "updated_at": at})
	if res.Error != nil {
		return classify(res.Error, "Notification", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}
