package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"time"

	"habersin/internal/models"
	"habersin/internal/observability"
)

// ImageHost uploads anonymously to an Imgur compatible endpoint.
type ImageHost struct {
	endpoint string
	clientID string
	client   *http.Client
}

type imageHostResponse struct {
	Success bool `json:"success"`
	Status  int  `json:"status"`
	Data    struct {
		Link       string `json:"link"`
		DeleteHash string `json:"deletehash"`
		Error      string `json:"error"`
	} `json:"data"`
}

// NewImageHost returns a host client. A nil client gets a 30 second timeout.
func NewImageHost(endpoint, clientID string, client *http.Client) *ImageHost {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ImageHost{endpoint: endpoint, clientID: clientID, client: client}
}

func (h *ImageHost) Put(ctx context.Context, key, contentType string, data []byte) (Handle, error) {
	defer observability.TrackBlob("imagehost", "put")()

	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)
	part, err := form.CreateFormFile("image", path.Base(key))
	if err != nil {
		return Handle{}, models.NewInternalError(err)
	}
	if _, err := part.Write(data); err != nil {
		return Handle{}, models.NewInternalError(err)
	}
	_ = form.WriteField("type", "file")
	if err := form.Close(); err != nil {
		return Handle{}, models.NewInternalError(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, body)
	if err != nil {
		return Handle{}, models.NewInternalError(err)
	}
	req.Header.Set("Authorization", "Client-ID "+h.clientID)
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return Handle{}, models.NewTransientStoreError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Handle{}, models.NewTransientStoreError(err)
	}
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return Handle{}, models.NewTransientStoreError(fmt.Errorf("image host returned %d", resp.StatusCode))
	}

	var out imageHostResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return Handle{}, models.NewInternalError(fmt.Errorf("decode image host response: %w", err))
	}
	if resp.StatusCode != http.StatusOK || !out.Success || out.Data.Link == "" {
		return Handle{}, models.NewInternalError(fmt.Errorf("image host rejected upload (%d): %s", resp.StatusCode, out.Data.Error))
	}

	handle := Handle{Key: out.Data.DeleteHash, URL: out.Data.Link}
	if handle.Key == "" {
		handle.Key = out.Data.Link
	}
	return handle, nil
}

func (h *ImageHost) URL(handle Handle) string {
	return handle.URL
}

// Delete is a no-op: anonymous uploads cannot be removed by this client.
func (h *ImageHost) Delete(context.Context, Handle) error {
	return nil
}
