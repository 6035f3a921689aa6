// Package admission decides whether a draft post may enter the moderation
// queue.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"habersin/internal/contentfilter"
	"habersin/internal/models"
	"habersin/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

const (
	MinImages        = 1
	MaxImages        = 3
	MinTitleLength   = 5
	MinContentLength = 20
	MinTokenLength   = 3
)

// Rejection messages, one per check.
const (
	MsgConsentRequired  = "You must accept the content policy before submitting"
	MsgImageCount       = "Please select between 1 and 3 images"
	MsgTitleProfanity   = "The title contains inappropriate language"
	MsgContentProfanity = "The content contains inappropriate language"
	MsgTitleTooShort    = "The title must be at least 5 characters"
	MsgContentTooShort  = "The content must be at least 20 characters"
	MsgCategoryRequired = "Please choose a valid category"
	MsgImageRejectedFmt = "Image %d (%s): %s"
)

// metric stage labels
const (
	stageNone            = "none"
	stageConsent         = "consent"
	stageImageCount      = "image_count"
	stageTitleProfanity  = "title_profanity"
	stageContentProfane  = "content_profanity"
	stageTitleLength     = "title_length"
	stageContentLength   = "content_length"
	stageCategory        = "category"
	stageImageValidation = "image"
)

// Draft is a submission as received from the author.
type Draft struct {
	Title      string
	Content    string
	Category   string
	Images     []contentfilter.ImageFile
	Consent    bool
	Anonymous  bool
	AuthorID   string
	AuthorName string
}

// Admission is an admitted draft: the post to store and the images to upload,
// in submission order.
type Admission struct {
	Post   *models.Post
	Images []*contentfilter.ValidatedImage
}

// Gate runs the admission checks. It keeps no state between calls.
type Gate struct {
	matcher       *contentfilter.ProfanityMatcher
	validator     *contentfilter.ImageValidator
	defaultStatus models.PostStatus
	now           func() time.Time
}

// NewGate returns a gate that stores admitted posts with defaultStatus.
func NewGate(matcher *contentfilter.ProfanityMatcher, validator *contentfilter.ImageValidator, defaultStatus models.PostStatus) *Gate {
	if !defaultStatus.IsValid() {
		defaultStatus = models.PostStatusPending
	}
	return &Gate{
		matcher:       matcher,
		validator:     validator,
		defaultStatus: defaultStatus,
		now:           time.Now,
	}
}

type rejection struct {
	stage string
	err   error
}

// Admit checks d and returns the post to persist. The first failing check is
// reported and no later check runs.
func (g *Gate) Admit(ctx context.Context, d Draft) (*Admission, error) {
	span, ctx := observability.NewSpan(ctx, "admission.Admit",
		attribute.Int("images", len(d.Images)),
		attribute.String("category", d.Category),
	)
	defer span.End()

	validated, rej := g.check(d)
	if rej != nil {
		observability.AdmissionDecisions.WithLabelValues("rejected", rej.stage).Inc()
		span.AddAttributes(attribute.String("rejected_at", rej.stage))
		slog.InfoContext(ctx, "submission rejected",
			slog.String("stage", rej.stage),
			slog.String("author_id", d.AuthorID),
		)
		return nil, rej.err
	}

	observability.AdmissionDecisions.WithLabelValues("admitted", stageNone).Inc()
	return &Admission{Post: g.buildPost(d), Images: validated}, nil
}

func (g *Gate) check(d Draft) ([]*contentfilter.ValidatedImage, *rejection) {
	if !d.Consent {
		return nil, reject(stageConsent, MsgConsentRequired)
	}
	if len(d.Images) < MinImages || len(d.Images) > MaxImages {
		return nil, reject(stageImageCount, MsgImageCount)
	}
	if g.matcher.ContainsProfanity(d.Title) {
		return nil, reject(stageTitleProfanity, MsgTitleProfanity)
	}
	if g.matcher.ContainsProfanity(d.Content) {
		return nil, reject(stageContentProfane, MsgContentProfanity)
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.Title)) < MinTitleLength {
		return nil, reject(stageTitleLength, MsgTitleTooShort)
	}
	if utf8.RuneCountInString(strings.TrimSpace(d.Content)) < MinContentLength {
		return nil, reject(stageContentLength, MsgContentTooShort)
	}
	if !models.IsValidCategory(d.Category) {
		return nil, reject(stageCategory, MsgCategoryRequired)
	}

	validated := make([]*contentfilter.ValidatedImage, 0, len(d.Images))
	for i, file := range d.Images {
		start := time.Now()
		img, err := g.validator.Validate(file)
		observability.ImageValidationDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, &rejection{stage: stageImageValidation, err: imageError(i, file.Filename, err)}
		}
		validated = append(validated, img)
	}
	return validated, nil
}

func reject(stage, msg string) *rejection {
	return &rejection{stage: stage, err: models.NewValidationError(msg)}
}

func imageError(index int, filename string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeValidation {
		return models.NewValidationError(fmt.Sprintf(MsgImageRejectedFmt, index+1, filename, appErr.Message))
	}
	return err
}

func (g *Gate) buildPost(d Draft) *models.Post {
	authorName := models.AnonymousAuthor
	if !d.Anonymous {
		authorName = strings.TrimSpace(d.AuthorName)
		if authorName == "" {
			authorName = models.UnnamedAuthor
		}
	}

	title := strings.TrimSpace(d.Title)
	content := strings.TrimSpace(d.Content)
	return &models.Post{
		Title:        strings.ToUpper(title),
		Content:      content,
		Category:     d.Category,
		AuthorID:     d.AuthorID,
		AuthorName:   authorName,
		IsAnonymous:  d.Anonymous,
		Status:       g.defaultStatus,
		Likes:        0,
		Dislikes:     0,
		Views:        0,
		SearchTokens: SearchTokens(title, content, d.Category),
		CreatedAt:    g.now().UTC(),
	}
}

// SearchTokens lower-cases the given fields, splits them on whitespace and
// keeps each token longer than two characters once, in first-seen order.
func SearchTokens(fields ...string) []string {
	seen := make(map[string]struct{})
	tokens := make([]string, 0)
	for _, field := range fields {
		for _, tok := range strings.Fields(strings.ToLower(field)) {
			if utf8.RuneCountInString(tok) < MinTokenLength {
				continue
			}
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
