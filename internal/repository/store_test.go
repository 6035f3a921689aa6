package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"habersin/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		code      string
		duplicate bool
	}{
		{name: "not found", err: gorm.ErrRecordNotFound, code: models.CodeNotFound},
		{name: "gorm duplicate", err: gorm.ErrDuplicatedKey, duplicate: true},
		{name: "pg unique violation", err: &pgconn.PgError{Code: "23505"}, duplicate: true},
		{name: "pg syntax error", err: &pgconn.PgError{Code: "42601"}, code: models.CodeInternal},
		{name: "pg serialization failure", err: &pgconn.PgError{Code: "40001"}, code: models.CodeTransientStore},
		{name: "pg connection failure", err: &pgconn.PgError{Code: "08006"}, code: models.CodeTransientStore},
		{name: "unknown", err: errors.New("connection reset by peer"), code: models.CodeTransientStore},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tt.err, "Post", "p1")
			if tt.duplicate {
				assert.ErrorIs(t, got, ErrDuplicate)
				return
			}
			assert.True(t, models.IsCode(got, tt.code), "got %v", got)
		})
	}
	assert.NoError(t, classify(nil, "Post", "p1"))
}

func TestCursor_RoundTrip(t *testing.T) {
	t.Parallel()

	c := Cursor{CreatedAt: time.Date(2024, 5, 1, 10, 30, 0, 123456789, time.UTC), ID: "p-9"}
	got, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, c.CreatedAt.Equal(got.CreatedAt))
	assert.Equal(t, "p-9", got.ID)

	none, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, none)

	for _, bad := range []string{"!!!", "bm8tc2VwYXJhdG9y", "eHx5"} {
		_, err := DecodeCursor(bad)
		assert.True(t, models.IsCode(err, models.CodeValidation), bad)
	}
}

func TestClampLimit(t *testing.T) {
	t.Parallel()

	assert.Equal(t, PageSize, clampLimit(0))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxPageSize, clampLimit(1000))
}

func TestStore_AtomicRollsBack(t *testing.T) {
	t.Parallel()

	store := setupSQLiteStore(t)
	ctx := context.Background()
	boom := models.NewValidationError("stop")

	err := store.Atomic(ctx, func(tx DocumentStore) error {
		if err := tx.Users().Create(ctx, &models.User{ID: "u1", DisplayName: "Deniz"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	exists, err := store.Users().Exists(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, exists)

	err = store.Atomic(ctx, func(tx DocumentStore) error {
		return tx.Users().Create(ctx, &models.User{ID: "u1", DisplayName: "Deniz"})
	})
	require.NoError(t, err)

	exists, err = store.Users().Exists(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, exists)
}
