package service

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"

	"habersin/internal/blob"
	"habersin/internal/contentfilter"
	"habersin/internal/models"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
)

const (
	MasterMaxSize    = 1920
	ThumbnailMaxSize = 480
	JPEGQuality      = 82
	WebPQuality      = 70
)

// UploadedImage is one admitted image after it reached the blob store.
type UploadedImage struct {
	Master    blob.Handle
	Thumbnail blob.Handle
}

// ImageUploader turns validated images into stored blobs.
type ImageUploader struct {
	blobs blob.Store
}

func NewImageUploader(blobs blob.Store) *ImageUploader {
	return &ImageUploader{blobs: blobs}
}

// Upload stores the master copy and a WebP thumbnail under prefix. Oversized
// masters are scaled down to MasterMaxSize and re-encoded as JPEG; anything
// else keeps its original bytes.
func (u *ImageUploader) Upload(ctx context.Context, prefix string, img *contentfilter.ValidatedImage) (*UploadedImage, error) {
	master, err := u.UploadMaster(ctx, prefix, img)
	if err != nil {
		return nil, err
	}

	thumb, err := encodeWebP(thumbnail(img.Image, ThumbnailMaxSize), WebPQuality)
	if err != nil {
		u.Cleanup(ctx, master)
		return nil, models.NewInternalError(err)
	}
	thumbHandle, err := u.blobs.Put(ctx, blob.NewKey(prefix, "image/webp"), "image/webp", thumb)
	if err != nil {
		u.Cleanup(ctx, master)
		return nil, err
	}

	return &UploadedImage{Master: master, Thumbnail: thumbHandle}, nil
}

// UploadMaster stores only the full size copy.
func (u *ImageUploader) UploadMaster(ctx context.Context, prefix string, img *contentfilter.ValidatedImage) (blob.Handle, error) {
	data, contentType := img.Data, img.ContentType
	b := img.Image.Bounds()
	if b.Dx() > MasterMaxSize || b.Dy() > MasterMaxSize {
		encoded, err := encodeJPEG(resizeToFit(img.Image, MasterMaxSize, MasterMaxSize), JPEGQuality)
		if err != nil {
			return blob.Handle{}, models.NewInternalError(err)
		}
		data, contentType = encoded, "image/jpeg"
	}
	return u.blobs.Put(ctx, blob.NewKey(prefix, contentType), contentType, data)
}

// Cleanup deletes handles and logs failures.
func (u *ImageUploader) Cleanup(ctx context.Context, handles ...blob.Handle) {
	for _, h := range handles {
		if h.Key == "" {
			continue
		}
		if err := u.blobs.Delete(ctx, h); err != nil {
			slog.WarnContext(ctx, "failed to delete blob",
				slog.String("key", h.Key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// CleanupKeys is Cleanup for stored keys.
func (u *ImageUploader) CleanupKeys(ctx context.Context, keys ...string) {
	handles := make([]blob.Handle, 0, len(keys))
	for _, k := range keys {
		handles = append(handles, blob.Handle{Key: k})
	}
	u.Cleanup(ctx, handles...)
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	newW, newH := maxWidth, h*maxWidth/w
	if w*maxHeight < h*maxWidth {
		newW, newH = w*maxHeight/h, maxHeight
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

// thumbnail scales src to fit within maxSize on an RGBA canvas. Smaller
// images keep their size.
func thumbnail(src image.Image, maxSize int) *image.RGBA {
	if rgba, ok := resizeToFit(src, maxSize, maxSize).(*image.RGBA); ok {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
