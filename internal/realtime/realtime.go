// Package realtime republishes store changes as snapshots over Redis pub/sub.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"habersin/internal/observability"

	"github.com/redis/go-redis/v9"
)

// CommentsTopic is the channel announcing new comments on a post.
func CommentsTopic(postID string) string {
	return fmt.Sprintf("habersin:comments:%s", postID)
}

// NotificationsTopic is the channel announcing notifications for a user.
func NotificationsTopic(userID string) string {
	return fmt.Sprintf("habersin:notifications:%s", userID)
}

// Notifier publishes change announcements. A nil Redis client turns every
// publish into a no-op.
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Client returns the underlying Redis client, which may be nil.
func (n *Notifier) Client() *redis.Client {
	if n == nil {
		return nil
	}
	return n.rdb
}

// Publish sends payload on topic.
func (n *Notifier) Publish(ctx context.Context, topic, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, topic, payload).Err()
}

// Loader reads the current state of a subscribed view.
type Loader[T any] func(ctx context.Context) (T, error)

// Subscription delivers the latest snapshot of a view. The channel holds one
// snapshot; a newer one replaces an unread older one.
type Subscription[T any] struct {
	snapshots chan T
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Snapshots returns the receive side. It is closed by Close.
func (s *Subscription[T]) Snapshots() <-chan T {
	return s.snapshots
}

// Close stops the subscription and releases its Redis connection.
func (s *Subscription[T]) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}

func (s *Subscription[T]) offer(v T) {
	for {
		select {
		case s.snapshots <- v:
			observability.RealtimeSnapshots.WithLabelValues("delivered").Inc()
			return
		default:
		}
		select {
		case <-s.snapshots:
			observability.RealtimeSnapshots.WithLabelValues("dropped").Inc()
		default:
		}
	}
}

// Subscribe loads the initial snapshot and then reloads on every message
// published to topic. Without Redis only the initial snapshot is delivered.
func Subscribe[T any](ctx context.Context, n *Notifier, topic string, load Loader[T]) (*Subscription[T], error) {
	initial, err := load(ctx)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription[T]{
		snapshots: make(chan T, 1),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	sub.offer(initial)

	rdb := n.Client()
	if rdb == nil {
		go func() {
			defer close(sub.done)
			defer close(sub.snapshots)
			<-subCtx.Done()
		}()
		return sub, nil
	}

	ps := rdb.Subscribe(subCtx, topic)
	if _, err := ps.Receive(subCtx); err != nil {
		cancel()
		_ = ps.Close()
		close(sub.done)
		close(sub.snapshots)
		return nil, err
	}

	go sub.run(subCtx, ps, topic, load)
	return sub, nil
}

func (s *Subscription[T]) run(ctx context.Context, ps *redis.PubSub, topic string, load Loader[T]) {
	defer close(s.done)
	defer close(s.snapshots)
	defer func() { _ = ps.Close() }()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in realtime subscription",
				slog.String("topic", topic),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			v, err := load(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				observability.RealtimeSnapshots.WithLabelValues("error").Inc()
				slog.WarnContext(ctx, "realtime reload failed",
					slog.String("topic", topic),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.offer(v)
		}
	}
}
