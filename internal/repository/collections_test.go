package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"habersin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReactionRepository(t *testing.T) {
	t.Parallel()

	store := setupSQLiteStore(t)
	ctx := context.Background()
	repo := store.Reactions()

	got, err := repo.Get(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Upsert(ctx, &models.Reaction{PostID: "p1", UserID: "u1", Type: models.ReactionLike}))
	require.NoError(t, repo.Upsert(ctx, &models.Reaction{PostID: "p1", UserID: "u1", Type: models.ReactionDislike}))

	got, err = repo.Get(ctx, "p1", "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.ReactionDislike, got.Type)

	require.NoError(t, repo.Delete(ctx, "p1", "u1"))
	got, err = repo.Get(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Upsert(ctx, &models.Reaction{PostID: "p1", UserID: "u2", Type: models.ReactionLike}))
	require.NoError(t, repo.DeleteByPost(ctx, "p1"))
	got, err = repo.Get(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCommentRepository_NewestFirst(t *testing.T) {
	t.Parallel()

	store := setupSQLiteStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Comments().Create(ctx, &models.Comment{
			PostID:     "p1",
			Content:    fmt.Sprintf("comment %d", i),
			AuthorID:   "u1",
			AuthorName: "Deniz",
			CreatedAt:  baseTime.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Comments().Create(ctx, &models.Comment{PostID: "p2", Content: "elsewhere", AuthorID: "u1"}))

	list, err := store.Comments().ListByPost(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "comment 2", list[0].Content)
	assert.Equal(t, "comment 0", list[2].Content)

	require.NoError(t, store.Comments().DeleteByPost(ctx, "p1"))
	list, err = store.Comments().ListByPost(ctx, "p1", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReportRepository(t *testing.T) {
	t.Parallel()

	store := setupSQLiteStore(t)
	ctx := context.Background()
	repo := store.Reports()

	report := &models.Report{
		PostID:     "p1",
		ReporterID: "u1",
		Reason:     models.ReportReasonSpam,
		Status:     models.ReportStatusNew,
	}
	require.NoError(t, repo.Create(ctx, report))

	err := repo.Create(ctx, &models.Report{PostID: "p1", ReporterID: "u1", Reason: models.ReportReasonOther, Status: models.ReportStatusNew})
	assert.ErrorIs(t, err, ErrDuplicate)

	exists, err := repo.Exists(ctx, "p1", "u1")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = repo.Exists(ctx, "p1", "u2")
	require.NoError(t, err)
	assert.False(t, exists)

	open, err := repo.ListByStatus(ctx, models.ReportStatusNew, 0)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, repo.MarkReviewed(ctx, report.ID, "mod-1", baseTime))
	open, err = repo.ListByStatus(ctx, models.ReportStatusNew, 0)
	require.NoError(t, err)
	assert.Empty(t, open)

	reviewed, err := repo.ListByStatus(ctx, models.ReportStatusReviewed, 0)
	require.NoError(t, err)
	require.Len(t, reviewed, 1)
	assert.Equal(t, "mod-1", reviewed[0].ReviewedBy)

	err = repo.MarkReviewed(ctx, "missing", "mod-1", baseTime)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestNotificationRepository_UnreadNewestFirst(t *testing.T) {
	t.Parallel()

	store := setupSQLiteStore(t)
	ctx := context.Background()
	repo := store.Notifications()

	var ids []string
	for i := 0; i < 55; i++ {
		n := &models.Notification{
			UserID:    "u1",
			Type:      models.NotificationModeration,
			Message:   fmt.Sprintf("message %d", i),
			CreatedAt: baseTime.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(ctx, n))
		ids = append(ids, n.ID)
	}
	require.NoError(t, repo.Create(ctx, &models.Notification{UserID: "u2", Type: models.NotificationSystem, Message: "other"}))

	require.NoError(t, repo.MarkRead(ctx, ids[54], baseTime.Add(time.Hour)))

	unread, err := repo.ListUnread(ctx, "u1", 50)
	require.NoError(t, err)
	require.Len(t, unread, 50)
	assert.Equal(t, "message 53", unread[0].Message)
	assert.Equal(t, "message 4", unread[49].Message)

	read, err := repo.GetByID(ctx, ids[54])
	require.NoError(t, err)
	assert.True(t, read.Read)
	assert.True(t, read.UpdatedAt.Equal(baseTime.Add(time.Hour)))

	count, err := repo.CountByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(55), count)

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestViewRepository_RecordsOnce(t *testing.T) {
	t.Parallel()

	store := setupSQLiteStore(t)
	ctx := context.Background()

	first, err := store.Views().Record(ctx, "p1", "user:u1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.Views().Record(ctx, "p1", "user:u1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := store.Views().Record(ctx, "p1", "ip:10.0.0.1")
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, store.Views().DeleteByPost(ctx, "p1"))
	first, err = store.Views().Record(ctx, "p1", "user:u1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestUserRepository(t *testing.T) {
	t.Parallel()

	store := setupSQLiteStore(t)
	ctx := context.Background()
	repo := store.Users()

	u := &models.User{
		FirstName:   "Deniz",
		LastName:    "Kaya",
		SocialLinks: models.SocialLinks{Twitter: "@deniz"},
	}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "@deniz", got.SocialLinks.Twitter)

	u.DisplayName = "dk"
	u.FirstName = "ignored"
	require.NoError(t, repo.Update(ctx, u, "display_name"))
	got, err = repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "dk", got.DisplayName)
	assert.Equal(t, "Deniz", got.FirstName)

	require.NoError(t, repo.SetModerator(ctx, u.ID, true))
	mods, err := repo.ListModerators(ctx)
	require.NoError(t, err)
	require.Len(t, mods, 1)
	assert.Equal(t, u.ID, mods[0].ID)

	err = repo.SetModerator(ctx, "missing", true)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	_, err = repo.GetByID(ctx, "missing")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
