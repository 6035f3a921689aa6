// Package blob stores uploaded image bytes and hands back public URLs.
package blob

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/google/uuid"
)

// Handle identifies a stored blob. Key is backend specific; URL is the public
// address when the backend assigns one.
type Handle struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Store is the blob collaborator used by the upload pipeline.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (Handle, error)
	URL(h Handle) string
	Delete(ctx context.Context, h Handle) error
}

// NewKey returns a fresh key under prefix, e.g. "posts/<uuid>.jpg".
func NewKey(prefix, contentType string) string {
	ext := extension(contentType)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return uuid.NewString() + ext
	}
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), ext)
}

func extension(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
