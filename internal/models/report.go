package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportReason is why a reader flagged a post.
type ReportReason string

const (
	ReportReasonInappropriate ReportReason = "inappropriate_content"
	ReportReasonSpam          ReportReason = "spam"
	ReportReasonHateSpeech    ReportReason = "hate_speech"
	ReportReasonMisinfo       ReportReason = "misinformation"
	ReportReasonCopyright     ReportReason = "copyright_violation"
	ReportReasonOther         ReportReason = "other"
)

// ReportReasons lists every accepted reason.
var ReportReasons = []ReportReason{
	ReportReasonInappropriate,
	ReportReasonSpam,
	ReportReasonHateSpeech,
	ReportReasonMisinfo,
	ReportReasonCopyright,
	ReportReasonOther,
}

func (r ReportReason) IsValid() bool {
	for _, known := range ReportReasons {
		if r == known {
			return true
		}
	}
	return false
}

// ReportStatus tracks moderator triage of a report.
type ReportStatus string

const (
	ReportStatusNew      ReportStatus = "new"
	ReportStatusReviewed ReportStatus = "reviewed"
)

// Report is a reader's complaint about a post. A reader may report a post once.
type Report struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID       string       `gorm:"not null;type:varchar(36);uniqueIndex:idx_reports_post_reporter" json:"post_id"`
	PostTitle    string       `json:"post_title"`
	ReporterID   string       `gorm:"not null;type:varchar(36);uniqueIndex:idx_reports_post_reporter" json:"reporter_id"`
	ReporterName string       `json:"reporter_name"`
	Reason       ReportReason `gorm:"type:varchar(32);not null" json:"reason"`
	Description  string       `gorm:"type:text" json:"description"`
	Status       ReportStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ReviewedBy   string       `gorm:"type:varchar(36)" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time   `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time    `gorm:"index" json:"created_at"`
}

func (r *Report) BeforeCreate(_ *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return nil
}
