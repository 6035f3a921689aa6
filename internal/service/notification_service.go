package service

import (
	"context"
	"time"

	"habersin/internal/models"
	"habersin/internal/realtime"
	"habersin/internal/repository"
)

const (
	// UnreadLimit caps the unread notifications returned at once.
	UnreadLimit      = 50
	MsgSystemWelcome = "Notification system started"
)

type NotificationService struct {
	store    repository.DocumentStore
	notifier *realtime.Notifier
	now      func() time.Time
}

func NewNotificationService(store repository.DocumentStore, notifier *realtime.Notifier) *NotificationService {
	return &NotificationService{store: store, notifier: notifier, now: time.Now}
}

// Unread returns up to UnreadLimit unread notifications, newest first.
func (s *NotificationService) Unread(ctx context.Context, userID string) ([]models.Notification, error) {
	if userID == "" {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	return s.store.Notifications().ListUnread(ctx, userID, UnreadLimit)
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	n, err := s.store.Notifications().GetByID(ctx, id)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return models.NewForbiddenError("You can only update your own notifications")
	}
	if n.Read {
		return nil
	}
	return s.store.Notifications().MarkRead(ctx, id, s.now().UTC())
}

// Initialize gives a user without any notification a system welcome. It
// reports whether one was created.
func (s *NotificationService) Initialize(ctx context.Context, userID string) (bool, error) {
	count, err := s.store.Notifications().CountByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	n := &models.Notification{
		UserID:  userID,
		Type:    models.NotificationSystem,
		Message: MsgSystemWelcome,
	}
	if err := s.store.Notifications().Create(ctx, n); err != nil {
		return false, err
	}
	_ = s.notifier.Publish(ctx, realtime.NotificationsTopic(userID), n.ID)
	return true, nil
}

// Subscribe streams the user's unread notifications.
func (s *NotificationService) Subscribe(ctx context.Context, userID string) (*realtime.Subscription[[]models.Notification], error) {
	return realtime.Subscribe(ctx, s.notifier, realtime.NotificationsTopic(userID), func(ctx context.Context) ([]models.Notification, error) {
		return s.Unread(ctx, userID)
	})
}
