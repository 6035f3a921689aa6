package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"habersin/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var transient = models.NewTransientStoreError(errors.New("connection reset"))

func fastPolicy() Policy {
	return Policy{Attempts: 3, Delay: time.Millisecond}
}

func TestDo_SucceedsFirstTime(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastPolicy(), "moderate", func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RecoversAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastPolicy(), "moderate", func(context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUpAfterAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastPolicy(), "moderate", func(context.Context) error {
		calls++
		return transient
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, models.IsCode(err, models.CodeTerminalStore))
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, "moderate failed after 3 attempts, please try again", err.(*models.AppError).Message)
}

func TestDo_DoesNotRetryPermanentErrors(t *testing.T) {
	t.Parallel()

	for _, permanent := range []error{
		models.NewValidationError("bad decision"),
		models.NewForbiddenError("moderators only"),
		models.NewNotFoundError("Post", "p1"),
		errors.New("plain"),
	} {
		calls := 0
		err := Do(context.Background(), fastPolicy(), "moderate", func(context.Context) error {
			calls++
			return permanent
		})
		assert.Same(t, permanent, err)
		assert.Equal(t, 1, calls)
	}
}

func TestDo_StopsWhenContextCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	start := time.Now()
	err := Do(ctx, Policy{Attempts: 3, Delay: time.Minute}, "moderate", func(context.Context) error {
		calls++
		cancel()
		return transient
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), Policy{}, "list", func(context.Context) error {
		calls++
		return transient
	})
	assert.True(t, models.IsCode(err, models.CodeTerminalStore))
	assert.Equal(t, 1, calls)
}

func TestValue(t *testing.T) {
	t.Parallel()

	calls := 0
	got, err := Value(context.Background(), fastPolicy(), "list", func(context.Context) ([]string, error) {
		calls++
		if calls == 1 {
			return nil, transient
		}
		return []string{"p1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, got)

	assert.Equal(t, DefaultPolicy(), Policy{Attempts: 3, Delay: 2 * time.Second})
}
