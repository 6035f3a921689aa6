package service

import (
	"context"
	"testing"
	"time"

	"habersin/internal/admission"
	"habersin/internal/contentfilter"
	"habersin/internal/models"
	"habersin/internal/realtime"
	"habersin/internal/repository"
	"habersin/internal/retry"
	"habersin/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var fastRetry = retry.Policy{Attempts: 3, Delay: time.Millisecond}

type fixture struct {
	store         *repository.Store
	blobs         *testutil.MemoryBlobs
	notifier      *realtime.Notifier
	posts         *PostService
	moderation    *ModerationService
	comments      *CommentService
	reports       *ReportService
	notifications *NotificationService
	users         *UserService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	redis bool
	store func(*repository.Store) repository.DocumentStore
}

func withRedis() fixtureOption {
	return func(c *fixtureConfig) { c.redis = true }
}

// withStore wraps the SQLite store given to the services.
func withStore(wrap func(*repository.Store) repository.DocumentStore) fixtureOption {
	return func(c *fixtureConfig) { c.store = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	base := repository.NewStore(testutil.NewSQLiteDB(t))
	var store repository.DocumentStore = base
	if cfg.store != nil {
		store = cfg.store(base)
	}

	var rdb *redis.Client
	if cfg.redis {
		mr := miniredis.RunT(t)
		rdb = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
	}
	notifier := realtime.NewNotifier(rdb)

	matcher := contentfilter.NewDefaultProfanityMatcher()
	gate := admission.NewGate(matcher, contentfilter.NewImageValidator(contentfilter.LimitsWithMaxBytes(10*contentfilter.MiB)), models.PostStatusPending)
	blobs := testutil.NewMemoryBlobs()
	images := NewImageUploader(blobs)

	return &fixture{
		store:         base,
		blobs:         blobs,
		notifier:      notifier,
		posts:         NewPostService(store, gate, matcher, contentfilter.NewImageValidator(contentfilter.LimitsWithMaxBytes(5*contentfilter.MiB)), images, fastRetry),
		moderation:    NewModerationService(store, notifier, fastRetry),
		comments:      NewCommentService(store, matcher, notifier),
		reports:       NewReportService(store),
		notifications: NewNotificationService(store, notifier),
		users:         NewUserService(store, matcher, contentfilter.NewImageValidator(contentfilter.LimitsWithMaxBytes(20*contentfilter.MiB)), images),
	}
}

func (f *fixture) addUser(t *testing.T, id, displayName string, moderator bool) *models.User {
	t.Helper()
	u := &models.User{ID: id, DisplayName: displayName, IsModerator: moderator}
	require.NoError(t, f.store.Users().Create(context.Background(), u))
	return u
}

func skyImage(t *testing.T, name string) contentfilter.ImageFile {
	return contentfilter.NewImageFile(name, "image/jpeg", testutil.SolidJPEG(t, 24, 24, testutil.Sky))
}

func validDraft(t *testing.T, authorID string) admission.Draft {
	return admission.Draft{
		Title:    "Bridge repairs finished",
		Content:  "Crews reopened the river bridge after three weeks of work.",
		Category: "Social",
		Images:   []contentfilter.ImageFile{skyImage(t, "bridge.jpg")},
		Consent:  true,
		AuthorID: authorID,
	}
}

func (f *fixture) submit(t *testing.T, authorID string) *models.Post {
	t.Helper()
	post, err := f.posts.Submit(context.Background(), validDraft(t, authorID))
	require.NoError(t, err)
	return post
}

// approve publishes a post through the moderation path.
func (f *fixture) approve(t *testing.T, postID, moderatorID string) {
	t.Helper()
	_, err := f.moderation.Moderate(context.Background(), ModerateInput{
		PostID:      postID,
		Decision:    models.PostStatusApproved,
		ModeratorID: moderatorID,
	})
	require.NoError(t, err)
}

// flakyStore fails Atomic with a transient error a number of times before
// delegating.
type flakyStore struct {
	repository.DocumentStore
	failures int
	calls    int
}

func (s *flakyStore) Atomic(ctx context.Context, fn func(tx repository.DocumentStore) error) error {
	s.calls++
	if s.calls <= s.failures {
		return models.NewTransientStoreError(context.DeadlineExceeded)
	}
	return s.DocumentStore.Atomic(ctx, fn)
}
