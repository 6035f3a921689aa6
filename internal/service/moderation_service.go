package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"habersin/internal/models"
	"habersin/internal/observability"
	"habersin/internal/realtime"
	"habersin/internal/repository"
	"habersin/internal/retry"

	"go.opentelemetry.io/otel/attribute"
)

// Moderation texts stored on the post and sent to the author.
const (
	DefaultApprovalNote   = "Content approved."
	DefaultRejectionNote  = "Content rejected."
	DefaultRejectReason   = "It does not comply with the content policies."
	MsgPostApproved       = "Your post has been approved and published!"
	MsgPostRejectedPrefix = "Your post has been rejected. Reason: "
	MsgAlreadyModerated   = "This post has already been moderated"
	MsgInvalidDecision    = "Decision must be approved or rejected"
)

// ModerateInput is a moderator's verdict on a pending post.
type ModerateInput struct {
	PostID      string
	Decision    models.PostStatus
	Note        string
	ModeratorID string
}

type ModerationService struct {
	store    repository.DocumentStore
	notifier *realtime.Notifier
	policy   retry.Policy
	now      func() time.Time
}

func NewModerationService(store repository.DocumentStore, notifier *realtime.Notifier, policy retry.Policy) *ModerationService {
	return &ModerationService{
		store:    store,
		notifier: notifier,
		policy:   policy,
		now:      time.Now,
	}
}

// Moderate moves a pending post to approved or rejected, records who did it
// and notifies the author, all in one transaction. Transient store failures
// are retried; the author is pushed the notification after commit.
func (s *ModerationService) Moderate(ctx context.Context, in ModerateInput) (*models.Post, error) {
	in.Note = strings.TrimSpace(in.Note)
	span, ctx := observability.NewSpan(ctx, "moderation.Moderate",
		attribute.String("post_id", in.PostID),
		attribute.String("decision", string(in.Decision)),
	)
	defer span.End()

	var (
		post         *models.Post
		notification *models.Notification
	)
	err := retry.Do(ctx, s.policy, "moderate post", func(ctx context.Context) error {
		var err error
		post, notification, err = s.moderateOnce(ctx, in)
		return err
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	observability.ModerationTransitions.WithLabelValues(string(in.Decision)).Inc()
	slog.InfoContext(ctx, "post moderated",
		slog.String("post_id", post.ID),
		slog.String("decision", string(in.Decision)),
		slog.String("moderator_id", in.ModeratorID),
	)

	if err := s.notifier.Publish(ctx, realtime.NotificationsTopic(notification.UserID), notification.ID); err != nil {
		slog.WarnContext(ctx, "failed to publish moderation notification",
			slog.String("notification_id", notification.ID),
			slog.String("error", err.Error()),
		)
	}
	return post, nil
}

func (s *ModerationService) moderateOnce(ctx context.Context, in ModerateInput) (*models.Post, *models.Notification, error) {
	if _, err := requireModerator(ctx, s.store.Users(), in.ModeratorID); err != nil {
		return nil, nil, err
	}
	if in.Decision != models.PostStatusApproved && in.Decision != models.PostStatusRejected {
		return nil, nil, models.NewValidationError(MsgInvalidDecision)
	}

	var (
		post         *models.Post
		notification *models.Notification
	)
	err := s.store.Atomic(ctx, func(tx repository.DocumentStore) error {
		current, err := tx.Posts().GetByID(ctx, in.PostID)
		if err != nil {
			return err
		}
		if current.Status != models.PostStatusPending {
			return models.NewInvalidStateError(MsgAlreadyModerated)
		}

		at := s.now().UTC()
		d := repository.Decision{
			Status:      in.Decision,
			Note:        moderationNote(in.Decision, in.Note),
			ModeratedBy: in.ModeratorID,
			ModeratedAt: at,
		}
		changed, err := tx.Posts().Transition(ctx, in.PostID, models.PostStatusPending, d)
		if err != nil {
			return err
		}
		if !changed {
			return models.NewInvalidStateError(MsgAlreadyModerated)
		}

		postID := current.ID
		notification = &models.Notification{
			UserID:    current.AuthorID,
			Type:      models.NotificationModeration,
			Message:   authorMessage(in.Decision, in.Note),
			PostID:    &postID,
			CreatedAt: at,
		}
		if err := tx.Notifications().Create(ctx, notification); err != nil {
			return err
		}

		post, err = tx.Posts().GetByID(ctx, in.PostID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return post, notification, nil
}

func moderationNote(decision models.PostStatus, note string) string {
	if note != "" {
		return note
	}
	if decision == models.PostStatusApproved {
		return DefaultApprovalNote
	}
	return DefaultRejectionNote
}

func authorMessage(decision models.PostStatus, note string) string {
	if decision == models.PostStatusApproved {
		return MsgPostApproved
	}
	if note == "" {
		note = DefaultRejectReason
	}
	return MsgPostRejectedPrefix + note
}

// ListPending returns the moderation queue, newest first.
func (s *ModerationService) ListPending(ctx context.Context, moderatorID string) ([]models.Post, error) {
	return retry.Value(ctx, s.policy, "list pending posts", func(ctx context.Context) ([]models.Post, error) {
		if _, err := requireModerator(ctx, s.store.Users(), moderatorID); err != nil {
			return nil, err
		}
		return s.store.Posts().ListByStatus(ctx, models.PostStatusPending, repository.MaxPageSize)
	})
}
