package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"habersin/internal/middleware"
	"habersin/internal/models"
	"habersin/internal/observability"
	"habersin/internal/realtime"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const socketWriteWait = 10 * time.Second

// upgradeRequired lets only websocket handshakes reach the socket routes.
func (s *Server) upgradeRequired(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// NotificationsSocket streams the caller's unread notifications, one JSON
// array per change.
func (s *Server) NotificationsSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(string)
		ctx, cancel := context.WithCancel(middleware.WithUserID(context.Background(), userID))
		defer cancel()

		sub, err := s.notificationService.Subscribe(ctx, userID)
		if err != nil {
			writeSocketError(conn, err)
			return
		}
		streamSnapshots(ctx, cancel, conn, sub)
	})
}

// CommentsSocket streams a post's comments, newest first, one JSON array per
// new comment.
func (s *Server) CommentsSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		postID := conn.Params("id")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sub, err := s.commentService.Subscribe(ctx, postID)
		if err != nil {
			writeSocketError(conn, err)
			return
		}
		streamSnapshots(ctx, cancel, conn, sub)
	})
}

func streamSnapshots[T any](ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sub *realtime.Subscription[T]) {
	observability.ActiveWebSockets.Inc()
	defer observability.ActiveWebSockets.Dec()
	defer sub.Close()

	// Clients only listen; a failed read means they went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snapshot, ok := <-sub.Snapshots():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteJSON(snapshot); err != nil {
				middleware.Logger.DebugContext(ctx, "websocket write failed", slog.String("error", err.Error()))
				return
			}
		}
	}
}

func writeSocketError(conn *websocket.Conn, err error) {
	resp := models.ErrorResponse{Error: "Internal server error", Code: models.CodeInternal}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Code = appErr.Code
	}
	_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
	_ = conn.WriteJSON(resp)
}
