package server

import (
	"habersin/internal/middleware"
	"habersin/internal/models"
	"habersin/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:id/comments
func (s *Server) GetComments(c *fiber.Ctx) error {
	comments, err := s.commentService.List(c.UserContext(), c.Params("id"), parseLimit(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:id/comments {"content"}
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}

	comment, err := s.commentService.Create(c.UserContext(), service.CreateCommentInput{
		PostID:  c.Params("id"),
		UserID:  middleware.UserID(c),
		Content: req.Content,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// ReportPost handles POST /api/posts/:id/reports {"reason", "description"}
func (s *Server) ReportPost(c *fiber.Ctx) error {
	var req struct {
		Reason      models.ReportReason `json:"reason"`
		Description string              `json:"description"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}

	report, err := s.reportService.Create(c.UserContext(), service.CreateReportInput{
		PostID:      c.Params("id"),
		ReporterID:  middleware.UserID(c),
		Reason:      req.Reason,
		Description: req.Description,
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(report)
}
