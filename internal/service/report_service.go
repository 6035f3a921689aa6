package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"habersin/internal/models"
	"habersin/internal/repository"
)

const (
	MaxReportDescription = 500
	MsgReportReason      = "Please choose a reason for the report"
	MsgReportDuplicate   = "You have already reported this post"
	MsgReportTooLong     = "Description is too long (max 500 characters)"
)

type ReportService struct {
	store repository.DocumentStore
	now   func() time.Time
}

func NewReportService(store repository.DocumentStore) *ReportService {
	return &ReportService{store: store, now: time.Now}
}

type CreateReportInput struct {
	PostID      string
	ReporterID  string
	Reason      models.ReportReason
	Description string
}

// Create files a report. A reader can report a post once.
func (s *ReportService) Create(ctx context.Context, in CreateReportInput) (*models.Report, error) {
	if in.ReporterID == "" {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	if !in.Reason.IsValid() {
		return nil, models.NewValidationError(MsgReportReason)
	}
	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > MaxReportDescription {
		return nil, models.NewValidationError(MsgReportTooLong)
	}

	post, err := s.store.Posts().GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	exists, err := s.store.Reports().Exists(ctx, in.PostID, in.ReporterID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, models.NewValidationError(MsgReportDuplicate)
	}

	name, err := displayName(ctx, s.store.Users(), in.ReporterID)
	if err != nil {
		return nil, err
	}

	report := &models.Report{
		PostID:       post.ID,
		PostTitle:    post.Title,
		ReporterID:   in.ReporterID,
		ReporterName: name,
		Reason:       in.Reason,
		Description:  description,
		Status:       models.ReportStatusNew,
	}
	if err := s.store.Reports().Create(ctx, report); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, models.NewValidationError(MsgReportDuplicate)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "post reported",
		slog.String("post_id", post.ID),
		slog.String("reason", string(in.Reason)),
	)
	return report, nil
}

// ListOpen returns unreviewed reports for moderators, newest first.
func (s *ReportService) ListOpen(ctx context.Context, moderatorID string) ([]models.Report, error) {
	if _, err := requireModerator(ctx, s.store.Users(), moderatorID); err != nil {
		return nil, err
	}
	return s.store.Reports().ListByStatus(ctx, models.ReportStatusNew, repository.MaxPageSize)
}

// Review marks a report as handled.
func (s *ReportService) Review(ctx context.Context, reportID, moderatorID string) error {
	if _, err := requireModerator(ctx, s.store.Users(), moderatorID); err != nil {
		return err
	}
	return s.store.Reports().MarkReviewed(ctx, reportID, moderatorID, s.now().UTC())
}
