package server

import (
	"strings"

	"habersin/internal/middleware"
	"habersin/internal/models"
	"habersin/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPendingPosts handles GET /api/moderation/posts
func (s *Server) GetPendingPosts(c *fiber.Ctx) error {
	posts, err := s.moderationService.ListPending(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// ModeratePost handles POST /api/moderation/posts/:id {"decision", "note"}
func (s *Server) ModeratePost(c *fiber.Ctx) error {
	var req struct {
		Decision string `json:"decision"`
		Note     string `json:"note"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}

	post, err := s.moderationService.Moderate(c.UserContext(), service.ModerateInput{
		PostID:      c.Params("id"),
		Decision:    models.PostStatus(strings.ToLower(strings.TrimSpace(req.Decision))),
		Note:        req.Note,
		ModeratorID: middleware.UserID(c),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// GetOpenReports handles GET /api/moderation/reports
func (s *Server) GetOpenReports(c *fiber.Ctx) error {
	reports, err := s.reportService.ListOpen(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(reports)
}

// ReviewReport handles POST /api/moderation/reports/:id/review
func (s *Server) ReviewReport(c *fiber.Ctx) error {
	if err := s.reportService.Review(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(fiber.Map{"id": c.Params("id"), "status": models.ReportStatusReviewed})
}
