package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"habersin/internal/contentfilter"
	"habersin/internal/models"
	"habersin/internal/realtime"
	"habersin/internal/repository"
)

const (
	MaxCommentLength       = 2000
	MsgCommentEmpty        = "Comment cannot be empty"
	MsgCommentTooLong      = "Comment is too long (max 2000 characters)"
	MsgCommentProfanity    = "The comment contains inappropriate language"
	commentListDefaultSize = 50
)

type CommentService struct {
	store    repository.DocumentStore
	matcher  *contentfilter.ProfanityMatcher
	notifier *realtime.Notifier
}

func NewCommentService(store repository.DocumentStore, matcher *contentfilter.ProfanityMatcher, notifier *realtime.Notifier) *CommentService {
	return &CommentService{store: store, matcher: matcher, notifier: notifier}
}

type CreateCommentInput struct {
	PostID  string
	UserID  string
	Content string
}

// Create adds a comment to an existing post and announces it on the post's
// comment channel.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	if in.UserID == "" {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	content := strings.TrimSpace(in.Content)
	switch {
	case content == "":
		return nil, models.NewValidationError(MsgCommentEmpty)
	case utf8.RuneCountInString(content) > MaxCommentLength:
		return nil, models.NewValidationError(MsgCommentTooLong)
	case s.matcher.ContainsProfanity(content):
		return nil, models.NewValidationError(MsgCommentProfanity)
	}

	exists, err := s.store.Posts().Exists(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, models.NewNotFoundError("Post", in.PostID)
	}

	name, err := displayName(ctx, s.store.Users(), in.UserID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = models.UnnamedUser
	}

	comment := &models.Comment{
		PostID:     in.PostID,
		Content:    content,
		AuthorID:   in.UserID,
		AuthorName: name,
	}
	if err := s.store.Comments().Create(ctx, comment); err != nil {
		return nil, err
	}

	if err := s.notifier.Publish(ctx, realtime.CommentsTopic(in.PostID), comment.ID); err != nil {
		slog.WarnContext(ctx, "failed to publish comment", slog.String("comment_id", comment.ID), slog.String("error", err.Error()))
	}
	return comment, nil
}

// List returns the post's comments, newest first.
func (s *CommentService) List(ctx context.Context, postID string, limit int) ([]models.Comment, error) {
	if limit <= 0 {
		limit = commentListDefaultSize
	}
	return s.store.Comments().ListByPost(ctx, postID, limit)
}

// Subscribe streams the comment list of a post, refreshed on every new
// comment.
func (s *CommentService) Subscribe(ctx context.Context, postID string) (*realtime.Subscription[[]models.Comment], error) {
	return realtime.Subscribe(ctx, s.notifier, realtime.CommentsTopic(postID), func(ctx context.Context) ([]models.Comment, error) {
		return s.List(ctx, postID, 0)
	})
}
