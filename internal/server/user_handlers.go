package server

import (
	"log/slog"

	"habersin/internal/contentfilter"
	"habersin/internal/middleware"
	"habersin/internal/models"
	"habersin/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me. The profile is created on first
// access for a new token subject.
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.Ensure(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UpdateMyProfile handles PUT /api/users/me
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), middleware.UserID(c), req)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// UploadProfilePhoto handles POST /api/users/me/photo (multipart field "photo")
func (s *Server) UploadProfilePhoto(c *fiber.Ctx) error {
	fh, err := c.FormFile("photo")
	if err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("No file uploaded"))
	}

	user, err := s.userService.UploadPhoto(c.UserContext(), middleware.UserID(c), contentfilter.ImageFileFromHeader(fh))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(user)
}

// GetNotifications handles GET /api/notifications. A user opening the list
// for the first time gets the system welcome.
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := middleware.UserID(c)

	if _, err := s.notificationService.Initialize(ctx, userID); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to initialize notifications", slog.String("error", err.Error()))
	}

	list, err := s.notificationService.Unread(ctx, userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(list)
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	if err := s.notificationService.MarkRead(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
