package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	PostTTL = 5 * time.Minute
	UserTTL = 10 * time.Minute
	ViewTTL = 24 * time.Hour
)

func PostKey(postID string) string {
	return "habersin:post:" + postID
}

func UserKey(userID string) string {
	return "habersin:user:" + userID
}

func viewKey(postID, viewerKey string) string {
	return "habersin:view:" + postID + ":" + viewerKey
}

// Aside reads key into dest, or calls fetch to fill dest and stores the
// result for ttl. Redis failures fall through to fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	if b, err := json.Marshal(dest); err == nil {
		client.Set(ctx, key, b, ttl)
	}
	return nil
}

// Invalidate removes keys, ignoring errors.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	client.Del(ctx, keys...)
}

// FirstView reports whether viewerKey has not been seen on postID within
// ViewTTL and marks it seen. Without Redis every view counts as first and
// the database unique key decides.
func FirstView(ctx context.Context, postID, viewerKey string) bool {
	if client == nil {
		return true
	}
	ok, err := client.SetNX(ctx, viewKey(postID, viewerKey), 1, ViewTTL).Result()
	if err != nil {
		return true
	}
	return ok
}

// ForgetView clears the mark set by FirstView, so the next view is counted
// again. Used when recording the view failed.
func ForgetView(ctx context.Context, postID, viewerKey string) {
	Invalidate(ctx, viewKey(postID, viewerKey))
}
