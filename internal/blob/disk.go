package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"habersin/internal/models"
	"habersin/internal/observability"
)

// MediaPrefix is the route under which DiskStore files are served.
const MediaPrefix = "/media/"

// DiskStore keeps blobs as files under a root directory.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates root if needed. baseURL is the public origin of the
// HTTP surface and may be empty for relative URLs.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if root == "" {
		return nil, errors.New("blob root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory files are written to.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if key == "" || clean == "/" || strings.Contains(key, "..") {
		return "", models.NewValidationError("invalid blob key")
	}
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (s *DiskStore) Put(ctx context.Context, key, _ string, data []byte) (Handle, error) {
	defer observability.TrackBlob("disk", "put")()

	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}
	target, err := s.resolve(key)
	if err != nil {
		return Handle{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Handle{}, models.NewTransientStoreError(err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return Handle{}, models.NewTransientStoreError(err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return Handle{}, models.NewTransientStoreError(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return Handle{}, models.NewTransientStoreError(err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return Handle{}, models.NewTransientStoreError(err)
	}

	h := Handle{Key: key}
	h.URL = s.URL(h)
	return h, nil
}

func (s *DiskStore) URL(h Handle) string {
	return s.baseURL + MediaPrefix + strings.TrimPrefix(h.Key, "/")
}

// Delete removes the file. A missing file is not an error.
func (s *DiskStore) Delete(_ context.Context, h Handle) error {
	defer observability.TrackBlob("disk", "delete")()

	target, err := s.resolve(h.Key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return models.NewTransientStoreError(err)
	}
	return nil
}
