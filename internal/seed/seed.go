// Package seed fills a development database with fake users, posts and
// engagement. It is meant for local runs and demos only.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"habersin/internal/admission"
	"habersin/internal/contentfilter"
	"habersin/internal/database"
	"habersin/internal/models"
	"habersin/internal/repository"
	"habersin/internal/service"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// Options configures a seeding run.
type Options struct {
	Users           int
	Moderators      int
	Posts           int
	CommentsPerPost int
	// MaxDays spreads created_at over the last MaxDays days.
	MaxDays int
	// RandSeed makes a run reproducible. Zero picks a time based seed.
	RandSeed int64
}

// DefaultOptions matches the seed command defaults.
func DefaultOptions() Options {
	return Options{Users: 20, Moderators: 2, Posts: 60, CommentsPerPost: 5, MaxDays: 60}
}

// Result counts what a run created.
type Result struct {
	Users     []models.User
	Posts     []models.Post
	Comments  int
	Reactions int
}

// Seeder writes fake data through the repositories.
type Seeder struct {
	db      *gorm.DB
	store   repository.DocumentStore
	matcher *contentfilter.ProfanityMatcher
	faker   *gofakeit.Faker
	opts    Options
	now     time.Time
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	randSeed := opts.RandSeed
	if randSeed == 0 {
		randSeed = time.Now().UnixNano()
	}
	if opts.MaxDays <= 0 {
		opts.MaxDays = 60
	}
	return &Seeder{
		db:      db,
		store:   repository.NewStore(db),
		matcher: contentfilter.NewDefaultProfanityMatcher(),
		faker:   gofakeit.New(randSeed),
		opts:    opts,
		now:     time.Now().UTC(),
	}
}

// ClearAll deletes every row the service owns.
func (s *Seeder) ClearAll(ctx context.Context) error {
	tables := database.Models()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(tables[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", tables[i], err)
		}
	}
	slog.InfoContext(ctx, "database cleared")
	return nil
}

// Run creates users, posts in every moderation state, comments and
// reactions.
func (s *Seeder) Run(ctx context.Context) (*Result, error) {
	res := &Result{}

	users, err := s.createUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create users: %w", err)
	}
	res.Users = users
	slog.InfoContext(ctx, "users created", slog.Int("count", len(users)))
	if len(users) == 0 {
		return res, nil
	}

	for i := 0; i < s.opts.Posts; i++ {
		post, err := s.createPost(ctx, users)
		if err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		res.Posts = append(res.Posts, *post)

		if !post.Status.IsPublished() {
			continue
		}
		comments, err := s.createComments(ctx, post, users)
		if err != nil {
			return nil, fmt.Errorf("failed to create comments: %w", err)
		}
		res.Comments += comments

		reactions, err := s.createReactions(ctx, post, users)
		if err != nil {
			return nil, fmt.Errorf("failed to create reactions: %w", err)
		}
		res.Reactions += reactions
	}

	slog.InfoContext(ctx, "seeding complete",
		slog.Int("posts", len(res.Posts)),
		slog.Int("comments", res.Comments),
		slog.Int("reactions", res.Reactions),
	)
	return res, nil
}

func (s *Seeder) createUsers(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0, s.opts.Users)
	for i := 0; i < s.opts.Users; i++ {
		first, last := s.faker.FirstName(), s.faker.LastName()
		u := models.User{
			FirstName:   first,
			LastName:    last,
			DisplayName: s.cleanText(func() string { return s.faker.Username() }),
			Email:       strings.ToLower(fmt.Sprintf("%s.%s%d@example.com", first, last, i)),
			PhotoURL:    fmt.Sprintf("https://picsum.photos/seed/%s/200/200", s.faker.UUID()),
			IsModerator: i < s.opts.Moderators,
			CreatedAt:   s.pastTime(),
		}
		if s.faker.Bool() {
			u.SocialLinks.Twitter = "@" + strings.ToLower(first+last)
		}
		if err := s.store.Users().Create(ctx, &u); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// cleanText regenerates text until the matcher accepts it.
func (s *Seeder) cleanText(gen func() string) string {
	for {
		if text := gen(); !s.matcher.ContainsProfanity(text) {
			return text
		}
	}
}

func (s *Seeder) pastTime() time.Time {
	back := time.Duration(s.faker.Number(0, s.opts.MaxDays*24*60)) * time.Minute
	return s.now.Add(-back)
}

// pickStatus returns approved for most posts, leaving a queue and some
// rejections.
func (s *Seeder) pickStatus() models.PostStatus {
	switch n := s.faker.Number(1, 10); {
	case n <= 6:
		return models.PostStatusApproved
	case n <= 9:
		return models.PostStatusPending
	default:
		return models.PostStatusRejected
	}
}

func (s *Seeder) createPost(ctx context.Context, users []models.User) (*models.Post, error) {
	author := users[s.faker.Number(0, len(users)-1)]
	title := s.cleanText(func() string { return strings.TrimSuffix(s.faker.Sentence(6), ".") })
	content := s.cleanText(func() string { return s.faker.Paragraph(1, 3, 12, " ") })
	category := s.faker.RandomString(models.Categories)
	anonymous := s.faker.Number(1, 10) == 1

	authorName := author.Name()
	if anonymous {
		authorName = models.AnonymousAuthor
	}

	images := make([]string, s.faker.Number(admission.MinImages, admission.MaxImages))
	for i := range images {
		images[i] = fmt.Sprintf("https://picsum.photos/seed/%s/1280/720", s.faker.UUID())
	}

	post := &models.Post{
		Title:        strings.ToUpper(title),
		Content:      content,
		Category:     category,
		Images:       images,
		AuthorID:     author.ID,
		AuthorName:   authorName,
		IsAnonymous:  anonymous,
		Status:       s.pickStatus(),
		SearchTokens: admission.SearchTokens(title, content, category),
		CreatedAt:    s.pastTime(),
	}

	if post.Status.IsTerminal() {
		moderator, ok := s.moderator(users)
		if !ok {
			post.Status = models.PostStatusPending
		} else {
			at := post.CreatedAt.Add(time.Duration(s.faker.Number(5, 600)) * time.Minute)
			post.ModeratedBy = moderator.ID
			post.ModeratedAt = &at
			post.ModerationNote = service.DefaultApprovalNote
			if post.Status == models.PostStatusRejected {
				post.ModerationNote = service.DefaultRejectReason
			}
		}
	}

	if err := s.store.Posts().Create(ctx, post); err != nil {
		return nil, err
	}
	if post.ModeratedAt != nil {
		if err := s.notifyAuthor(ctx, post); err != nil {
			return nil, err
		}
	}
	return post, nil
}

func (s *Seeder) moderator(users []models.User) (models.User, bool) {
	var mods []models.User
	for _, u := range users {
		if u.IsModerator {
			mods = append(mods, u)
		}
	}
	if len(mods) == 0 {
		return models.User{}, false
	}
	return mods[s.faker.Number(0, len(mods)-1)], true
}

func (s *Seeder) notifyAuthor(ctx context.Context, post *models.Post) error {
	msg := service.MsgPostApproved
	if post.Status == models.PostStatusRejected {
		msg = service.MsgPostRejectedPrefix + post.ModerationNote
	}
	postID := post.ID
	return s.store.Notifications().Create(ctx, &models.Notification{
		UserID:    post.AuthorID,
		Type:      models.NotificationModeration,
		Message:   msg,
		PostID:    &postID,
		CreatedAt: *post.ModeratedAt,
	})
}

func (s *Seeder) createComments(ctx context.Context, post *models.Post, users []models.User) (int, error) {
	if s.opts.CommentsPerPost <= 0 {
		return 0, nil
	}
	n := s.faker.Number(0, s.opts.CommentsPerPost)
	for i := 0; i < n; i++ {
		author := users[s.faker.Number(0, len(users)-1)]
		comment := &models.Comment{
			PostID:     post.ID,
			Content:    s.cleanText(func() string { return s.faker.Sentence(s.faker.Number(4, 16)) }),
			AuthorID:   author.ID,
			AuthorName: author.Name(),
			CreatedAt:  post.CreatedAt.Add(time.Duration(i+1) * time.Duration(s.faker.Number(1, 120)) * time.Minute),
		}
		if err := s.store.Comments().Create(ctx, comment); err != nil {
			return i, err
		}
	}
	return n, nil
}

// createReactions lets a random subset of users react once each, keeping
// the post counters in step.
func (s *Seeder) createReactions(ctx context.Context, post *models.Post, users []models.User) (int, error) {
	count := 0
	err := s.store.Atomic(ctx, func(tx repository.DocumentStore) error {
		deltas := map[string]int64{}
		for _, u := range users {
			if s.faker.Number(1, 3) != 1 {
				continue
			}
			typ := models.ReactionLike
			if s.faker.Number(1, 4) == 1 {
				typ = models.ReactionDislike
			}
			if err := tx.Reactions().Upsert(ctx, &models.Reaction{PostID: post.ID, UserID: u.ID, Type: typ}); err != nil {
				return err
			}
			deltas[typ.CounterColumn()]++
			count++
		}
		deltas[repository.CounterViews] = int64(count + s.faker.Number(0, 200))
		return tx.Posts().AdjustCounters(ctx, post.ID, deltas)
	})
	return count, err
}
