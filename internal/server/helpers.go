package server

import (
	"mime/multipart"
	"strconv"
	"strings"

	"habersin/internal/contentfilter"
	"habersin/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Multipart field names accepted for post images.
var imageFields = []string{"images", "images[]", "image"}

// parseLimit reads ?limit=, leaving clamping to the repositories.
func parseLimit(c *fiber.Ctx) int {
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return 0
	}
	return limit
}

// formBool accepts the checkbox spellings browsers and clients send.
func formBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "on", "yes":
		return true
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

// multipartForm parses the request as multipart. Requests sent as plain
// forms yield an empty form so text fields can still be read with FormValue.
func multipartForm(c *fiber.Ctx) (*multipart.Form, error) {
	form, err := c.MultipartForm()
	if err == nil {
		return form, nil
	}
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil, models.NewValidationError("Invalid multipart form")
	}
	return &multipart.Form{}, nil
}

// formImages collects uploaded files in submission order.
func formImages(form *multipart.Form) []contentfilter.ImageFile {
	var files []contentfilter.ImageFile
	for _, field := range imageFields {
		for _, fh := range form.File[field] {
			files = append(files, contentfilter.ImageFileFromHeader(fh))
		}
	}
	return files
}

func formValue(form *multipart.Form, c *fiber.Ctx, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return vs[0]
	}
	return c.FormValue(key)
}
