package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"habersin/internal/admission"
	"habersin/internal/cache"
	"habersin/internal/contentfilter"
	"habersin/internal/models"
	"habersin/internal/observability"
	"habersin/internal/repository"
	"habersin/internal/retry"

	"go.opentelemetry.io/otel/attribute"
)

// Blob key prefixes.
const (
	PostImagePrefix    = "posts"
	ProfilePhotoPrefix = "profiles"
)

// MsgSearchQuery is returned when a query has no searchable word.
const MsgSearchQuery = "Search for a word of at least 3 characters"

type PostService struct {
	store         repository.DocumentStore
	gate          *admission.Gate
	matcher       *contentfilter.ProfanityMatcher
	editValidator *contentfilter.ImageValidator
	images        *ImageUploader
	policy        retry.Policy
	now           func() time.Time
}

func NewPostService(
	store repository.DocumentStore,
	gate *admission.Gate,
	matcher *contentfilter.ProfanityMatcher,
	editValidator *contentfilter.ImageValidator,
	images *ImageUploader,
	policy retry.Policy,
) *PostService {
	return &PostService{
		store:         store,
		gate:          gate,
		matcher:       matcher,
		editValidator: editValidator,
		images:        images,
		policy:        policy,
		now:           time.Now,
	}
}

// Submit admits the draft, uploads its images in order and stores the post.
// Nothing is written when a check fails; uploaded blobs are removed when a
// later upload or the write fails.
func (s *PostService) Submit(ctx context.Context, d admission.Draft) (*models.Post, error) {
	if d.AuthorID == "" {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	if !d.Anonymous && strings.TrimSpace(d.AuthorName) == "" {
		name, err := displayName(ctx, s.store.Users(), d.AuthorID)
		if err != nil {
			return nil, err
		}
		d.AuthorName = name
	}

	adm, err := s.gate.Admit(ctx, d)
	if err != nil {
		return nil, err
	}

	post := adm.Post
	uploaded := make([]*UploadedImage, 0, len(adm.Images))
	cleanup := func() {
		for _, u := range uploaded {
			s.images.Cleanup(ctx, u.Master, u.Thumbnail)
		}
	}

	for _, img := range adm.Images {
		u, err := s.images.Upload(ctx, PostImagePrefix, img)
		if err != nil {
			cleanup()
			slog.ErrorContext(ctx, "image upload failed",
				slog.String("author_id", d.AuthorID),
				slog.Int("uploaded", len(uploaded)),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
		uploaded = append(uploaded, u)
		post.Images = append(post.Images, u.Master.URL)
		post.ImageKeys = append(post.ImageKeys, u.Master.Key)
		post.Thumbnails = append(post.Thumbnails, u.Thumbnail.URL)
		post.ThumbKeys = append(post.ThumbKeys, u.Thumbnail.Key)
	}

	if err := s.store.Posts().Create(ctx, post); err != nil {
		cleanup()
		return nil, err
	}

	slog.InfoContext(ctx, "post submitted",
		slog.String("post_id", post.ID),
		slog.String("status", string(post.Status)),
		slog.Int("images", len(post.Images)),
	)
	return post, nil
}

// EditInput carries the editable fields. Image replaces the primary image
// when set.
type EditInput struct {
	PostID   string
	UserID   string
	Title    string
	Content  string
	Category string
	Image    *contentfilter.ImageFile
}

// Edit updates an owned post. Text goes through the same checks as a
// submission; a replacement image is held to the edit size limit.
func (s *PostService) Edit(ctx context.Context, in EditInput) (*models.Post, error) {
	post, err := s.store.Posts().GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}

	switch {
	case s.matcher.ContainsProfanity(in.Title):
		return nil, models.NewValidationError(admission.MsgTitleProfanity)
	case s.matcher.ContainsProfanity(in.Content):
		return nil, models.NewValidationError(admission.MsgContentProfanity)
	case utf8.RuneCountInString(strings.TrimSpace(in.Title)) < admission.MinTitleLength:
		return nil, models.NewValidationError(admission.MsgTitleTooShort)
	case utf8.RuneCountInString(strings.TrimSpace(in.Content)) < admission.MinContentLength:
		return nil, models.NewValidationError(admission.MsgContentTooShort)
	case !models.IsValidCategory(in.Category):
		return nil, models.NewValidationError(admission.MsgCategoryRequired)
	}

	var replaced *UploadedImage
	if in.Image != nil {
		img, err := s.editValidator.Validate(*in.Image)
		if err != nil {
			return nil, err
		}
		if replaced, err = s.images.Upload(ctx, PostImagePrefix, img); err != nil {
			return nil, err
		}
	}

	title := strings.TrimSpace(in.Title)
	content := strings.TrimSpace(in.Content)
	post.Title = strings.ToUpper(title)
	post.Content = content
	post.Category = in.Category
	post.SearchTokens = admission.SearchTokens(title, content, in.Category)
	post.UpdatedAt = s.now().UTC()
	columns := []string{"title", "content", "category", "search_tokens", "updated_at"}

	var oldKeys []string
	if replaced != nil {
		oldKeys = primaryKeys(post)
		setPrimary(post, replaced)
		columns = append(columns, "images", "image_keys", "thumbnails", "thumb_keys")
	}

	if err := s.store.Posts().Update(ctx, post, columns...); err != nil {
		if replaced != nil {
			s.images.Cleanup(ctx, replaced.Master, replaced.Thumbnail)
		}
		return nil, err
	}
	s.images.CleanupKeys(ctx, oldKeys...)
	return post, nil
}

func primaryKeys(p *models.Post) []string {
	var keys []string
	if len(p.ImageKeys) > 0 {
		keys = append(keys, p.ImageKeys[0])
	}
	if len(p.ThumbKeys) > 0 {
		keys = append(keys, p.ThumbKeys[0])
	}
	return keys
}

func setPrimary(p *models.Post, u *UploadedImage) {
	if len(p.Images) == 0 {
		p.Images = []string{u.Master.URL}
		p.ImageKeys = []string{u.Master.Key}
		p.Thumbnails = []string{u.Thumbnail.URL}
		p.ThumbKeys = []string{u.Thumbnail.Key}
		return
	}
	p.Images[0] = u.Master.URL
	setAt(&p.ImageKeys, 0, u.Master.Key)
	setAt(&p.Thumbnails, 0, u.Thumbnail.URL)
	setAt(&p.ThumbKeys, 0, u.Thumbnail.Key)
}

func setAt(s *[]string, i int, v string) {
	for len(*s) <= i {
		*s = append(*s, "")
	}
	(*s)[i] = v
}

// Delete removes a post with its reactions, comments, reports and views.
// Only the author or a moderator may delete. Blobs are removed after commit.
func (s *PostService) Delete(ctx context.Context, postID, userID string) error {
	post, err := s.store.Posts().GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		ok, err := isModerator(ctx, s.store.Users(), userID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}

	err = s.store.Atomic(ctx, func(tx repository.DocumentStore) error {
		if err := tx.Reactions().DeleteByPost(ctx, postID); err != nil {
			return err
		}
		if err := tx.Comments().DeleteByPost(ctx, postID); err != nil {
			return err
		}
		if err := tx.Reports().DeleteByPost(ctx, postID); err != nil {
			return err
		}
		if err := tx.Views().DeleteByPost(ctx, postID); err != nil {
			return err
		}
		return tx.Posts().Delete(ctx, postID)
	})
	if err != nil {
		return err
	}

	s.images.CleanupKeys(ctx, append(append([]string{}, post.ImageKeys...), post.ThumbKeys...)...)
	slog.InfoContext(ctx, "post deleted", slog.String("post_id", postID), slog.String("by", userID))
	return nil
}

// React toggles the user's reaction: a new reaction is added, the same one
// again removes it, and the opposite one switches it. Counters change in the
// same transaction and never drop below zero.
func (s *PostService) React(ctx context.Context, postID, userID string, typ models.ReactionType) (*models.ReactionResult, error) {
	if userID == "" {
		return nil, models.NewUnauthorizedError("Sign in required")
	}
	if !typ.IsValid() {
		return nil, models.NewValidationError("Reaction must be like or dislike")
	}

	span, ctx := observability.NewSpan(ctx, "post.React",
		attribute.String("post_id", postID),
		attribute.String("type", string(typ)),
	)
	defer span.End()

	var result models.ReactionResult
	var action string
	err := s.store.Atomic(ctx, func(tx repository.DocumentStore) error {
		// The post row lock serializes toggles on this post, so the
		// reaction read below cannot be stale.
		if _, err := tx.Posts().GetForUpdate(ctx, postID); err != nil {
			return err
		}
		existing, err := tx.Reactions().Get(ctx, postID, userID)
		if err != nil {
			return err
		}

		deltas := map[string]int64{}
		current := typ
		switch {
		case existing == nil:
			action = "added"
			deltas[typ.CounterColumn()] = 1
			err = tx.Reactions().Upsert(ctx, &models.Reaction{PostID: postID, UserID: userID, Type: typ})
		case existing.Type == typ:
			action = "removed"
			deltas[typ.CounterColumn()] = -1
			err = tx.Reactions().Delete(ctx, postID, userID)
		default:
			action = "switched"
			deltas[typ.CounterColumn()] = 1
			deltas[existing.Type.CounterColumn()] = -1
			err = tx.Reactions().Upsert(ctx, &models.Reaction{PostID: postID, UserID: userID, Type: typ})
		}
		if err != nil {
			return err
		}
		if err := tx.Posts().AdjustCounters(ctx, postID, deltas); err != nil {
			return err
		}

		post, err := tx.Posts().GetByID(ctx, postID)
		if err != nil {
			return err
		}
		result = models.ReactionResult{PostID: postID, Likes: post.Likes, Dislikes: post.Dislikes}
		if action != "removed" {
			result.Current = &current
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.ReactionToggles.WithLabelValues(string(typ), action).Inc()
	return &result, nil
}

// RecordView counts viewerKey once per post and reports whether it was new.
func (s *PostService) RecordView(ctx context.Context, postID, viewerKey string) (bool, error) {
	if viewerKey == "" || !cache.FirstView(ctx, postID, viewerKey) {
		return false, nil
	}
	var counted bool
	err := s.store.Atomic(ctx, func(tx repository.DocumentStore) error {
		first, err := tx.Views().Record(ctx, postID, viewerKey)
		if err != nil || !first {
			return err
		}
		counted = true
		return tx.Posts().AdjustCounters(ctx, postID, map[string]int64{repository.CounterViews: 1})
	})
	if err != nil {
		cache.ForgetView(ctx, postID, viewerKey)
		return false, err
	}
	return counted, nil
}

// Get returns a post. Unpublished posts are only visible to their author and
// to moderators; everyone else gets NOT_FOUND.
func (s *PostService) Get(ctx context.Context, postID, viewerID string) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(postID), &post, cache.PostTTL, func() error {
		p, err := retry.Value(ctx, s.policy, "get post", func(ctx context.Context) (*models.Post, error) {
			return s.store.Posts().GetByID(ctx, postID)
		})
		if err != nil {
			return err
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if post.Status.IsPublished() || (viewerID != "" && post.AuthorID == viewerID) {
		return &post, nil
	}
	ok, err := isModerator(ctx, s.store.Users(), viewerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewNotFoundError("Post", postID)
	}
	return &post, nil
}

// ListPublished pages through approved and legacy active posts, newest first.
func (s *PostService) ListPublished(ctx context.Context, cursorToken string, limit int) (repository.Page[models.Post], error) {
	cursor, err := repository.DecodeCursor(cursorToken)
	if err != nil {
		return repository.Page[models.Post]{}, err
	}
	return retry.Value(ctx, s.policy, "list posts", func(ctx context.Context) (repository.Page[models.Post], error) {
		return s.store.Posts().ListPublished(ctx, cursor, limit)
	})
}

// ListByAuthor pages through an author's posts. Other viewers only see the
// published ones.
func (s *PostService) ListByAuthor(ctx context.Context, authorID, viewerID, cursorToken string, limit int) (repository.Page[models.Post], error) {
	cursor, err := repository.DecodeCursor(cursorToken)
	if err != nil {
		return repository.Page[models.Post]{}, err
	}
	page, err := retry.Value(ctx, s.policy, "list author posts", func(ctx context.Context) (repository.Page[models.Post], error) {
		return s.store.Posts().ListByAuthor(ctx, authorID, cursor, limit)
	})
	if err != nil || authorID == viewerID {
		return page, err
	}

	visible := page.Items[:0]
	for _, p := range page.Items {
		if p.Status.IsPublished() {
			visible = append(visible, p)
		}
	}
	page.Items = visible
	return page, nil
}

// Search returns published posts containing every word of query.
func (s *PostService) Search(ctx context.Context, query string, limit int) ([]models.Post, error) {
	tokens := admission.SearchTokens(query)
	if len(tokens) == 0 {
		return nil, models.NewValidationError(MsgSearchQuery)
	}
	posts, err := retry.Value(ctx, s.policy, "search posts", func(ctx context.Context) ([]models.Post, error) {
		return s.store.Posts().Search(ctx, tokens, limit)
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// ViewerKey identifies a viewer for unique view counting: the user when
// signed in, otherwise the client IP. Empty when neither is known.
func ViewerKey(userID, ip string) string {
	switch {
	case userID != "":
		return "user:" + userID
	case ip != "":
		return "ip:" + ip
	default:
		return ""
	}
}
