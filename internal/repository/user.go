package repository

import (
	"context"

	"habersin/internal/cache"
	"habersin/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, user *models.User) error
	// Update writes the named columns of user.
	Update(ctx context.Context, user *models.User, columns ...string) error
	SetModerator(ctx context.Context, id string, isModerator bool) error
	ListModerators(ctx context.Context) ([]models.User, error)
}

type userRepository struct {
	db         *gorm.DB
	invalidate func(ctx context.Context, keys ...string)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, func() error {
		return classify(r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error, "User", id)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, classify(err, "User", id)
	}
	return count > 0, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return classify(r.db.WithContext(ctx).Create(user).Error, "User", user.ID)
}

func (r *userRepository) Update(ctx context.Context, user *models.User, columns ...string) error {
	res := r.db.WithContext(ctx).Model(user).Select(columns).Updates(user)
	if res.Error != nil {
		return classify(res.Error, "User", user.ID)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", user.ID)
	}
	r.invalidate(ctx, cache.UserKey(user.ID))
	return nil
}

func (r *userRepository) SetModerator(ctx context.Context, id string, isModerator bool) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_moderator", isModerator)
	if res.Error != nil {
		return classify(res.Error, "User", id)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	r.invalidate(ctx, cache.UserKey(id))
	return nil
}

func (r *userRepository) ListModerators(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.WithContext(ctx).Where("is_moderator = ?", true).Order("created_at ASC").Find(&users).Error
	return users, classify(err, "User", "")
}
