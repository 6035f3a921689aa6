package server

import (
	"log/slog"
	"strings"

	"habersin/internal/admission"
	"habersin/internal/middleware"
	"habersin/internal/models"
	"habersin/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts?cursor=&limit=
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListPublished(c.UserContext(), c.Query("cursor"), parseLimit(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}

// SearchPosts handles GET /api/posts/search?q=...
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	posts, err := s.postService.Search(c.UserContext(), c.Query("q"), parseLimit(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id. Reading a published post counts one
// view per viewer.
func (s *Server) GetPost(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := middleware.UserID(c)

	post, err := s.postService.Get(ctx, c.Params("id"), userID)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	if post.Status.IsPublished() {
		counted, err := s.postService.RecordView(ctx, post.ID, service.ViewerKey(userID, c.IP()))
		if err != nil {
			middleware.Logger.WarnContext(ctx, "failed to record view",
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()),
			)
		} else if counted {
			post.Views++
		}
	}

	return c.JSON(post)
}

// CreatePost handles POST /api/posts (multipart: title, content, category,
// consent, anonymous, images).
func (s *Server) CreatePost(c *fiber.Ctx) error {
	form, err := multipartForm(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	post, err := s.postService.Submit(c.UserContext(), admission.Draft{
		Title:      formValue(form, c, "title"),
		Content:    formValue(form, c, "content"),
		Category:   formValue(form, c, "category"),
		Images:     formImages(form),
		Consent:    formBool(formValue(form, c, "consent")),
		Anonymous:  formBool(formValue(form, c, "anonymous")),
		AuthorID:   middleware.UserID(c),
		AuthorName: strings.TrimSpace(formValue(form, c, "author_name")),
	})
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

// UpdatePost handles PUT /api/posts/:id (multipart, optional image).
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	form, err := multipartForm(c)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}

	in := service.EditInput{
		PostID:   c.Params("id"),
		UserID:   middleware.UserID(c),
		Title:    formValue(form, c, "title"),
		Content:  formValue(form, c, "content"),
		Category: formValue(form, c, "category"),
	}
	if files := formImages(form); len(files) > 0 {
		if len(files) > 1 {
			return models.RespondWithAppError(c, models.NewValidationError("Only one image can be replaced at a time"))
		}
		in.Image = &files[0]
	}

	post, err := s.postService.Edit(c.UserContext(), in)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.postService.Delete(c.UserContext(), c.Params("id"), middleware.UserID(c)); err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ReactToPost handles POST /api/posts/:id/reactions {"type": "like"|"dislike"}
func (s *Server) ReactToPost(c *fiber.Ctx) error {
	var req struct {
		Type models.ReactionType `json:"type"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithAppError(c, models.NewValidationError("Invalid request body"))
	}

	result, err := s.postService.React(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Type)
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(result)
}

// GetUserPosts handles GET /api/users/:id/posts. Authors see their own
// pending and rejected posts; everyone else sees the published ones.
func (s *Server) GetUserPosts(c *fiber.Ctx) error {
	page, err := s.postService.ListByAuthor(c.UserContext(), c.Params("id"), middleware.UserID(c), c.Query("cursor"), parseLimit(c))
	if err != nil {
		return models.RespondWithAppError(c, err)
	}
	return c.JSON(page)
}
