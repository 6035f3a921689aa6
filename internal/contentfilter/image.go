package contentfilter

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register GIF decoder
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"mime"
	"mime/multipart"
	"strings"

	"habersin/internal/models"
)

// Rejection messages returned by ImageValidator.
const (
	MsgUnsupportedFormat = "unsupported image format, use JPEG, PNG or GIF"
	MsgTooLarge          = "image is too large"
	MsgDimensionsTooBig  = "image dimensions are too large"
	MsgUndecodable       = "could not decode image"
	MsgInappropriate     = "image may contain inappropriate content"
)

const (
	MiB = 1 << 20

	DefaultMaxDimension       = 5000
	DefaultSkinRatioThreshold = 0.3
)

// ImageLimits configures one call site of the validator.
type ImageLimits struct {
	MaxBytes           int64
	MaxWidth           int
	MaxHeight          int
	SkinRatioThreshold float64
}

// LimitsWithMaxBytes returns the default dimension and skin limits with the
// given byte ceiling.
func LimitsWithMaxBytes(maxBytes int64) ImageLimits {
	return ImageLimits{
		MaxBytes:           maxBytes,
		MaxWidth:           DefaultMaxDimension,
		MaxHeight:          DefaultMaxDimension,
		SkinRatioThreshold: DefaultSkinRatioThreshold,
	}
}

// ImageFile is an uploaded file as declared by the client.
type ImageFile struct {
	Filename    string
	ContentType string
	Size        int64
	open        func() (io.ReadCloser, error)
}

// NewImageFile wraps in-memory content.
func NewImageFile(filename, contentType string, data []byte) ImageFile {
	return ImageFile{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// ImageFileFromHeader wraps a multipart upload without reading it.
func ImageFileFromHeader(fh *multipart.FileHeader) ImageFile {
	return ImageFile{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// ValidatedImage is an image that passed every check.
type ValidatedImage struct {
	Filename    string
	ContentType string
	Format      string
	Width       int
	Height      int
	SkinRatio   float64
	Data        []byte
	Image       image.Image
}

// ImageValidator screens uploaded images.
type ImageValidator struct {
	limits ImageLimits
}

// NewImageValidator fills zero limits with defaults. MaxBytes must be set.
func NewImageValidator(limits ImageLimits) *ImageValidator {
	if limits.MaxWidth <= 0 {
		limits.MaxWidth = DefaultMaxDimension
	}
	if limits.MaxHeight <= 0 {
		limits.MaxHeight = DefaultMaxDimension
	}
	if limits.SkinRatioThreshold <= 0 {
		limits.SkinRatioThreshold = DefaultSkinRatioThreshold
	}
	return &ImageValidator{limits: limits}
}

// Limits returns the effective limits.
func (v *ImageValidator) Limits() ImageLimits {
	return v.limits
}

// Validate runs the checks in order and stops at the first failure: declared
// type, size, dimensions, skin ratio. The file is closed on every path.
func (v *ImageValidator) Validate(file ImageFile) (*ValidatedImage, error) {
	contentType, ok := acceptedContentType(file.ContentType)
	if !ok {
		return nil, models.NewValidationError(MsgUnsupportedFormat)
	}
	if file.Size > v.limits.MaxBytes {
		return nil, tooLarge(v.limits.MaxBytes)
	}
	if file.open == nil {
		return nil, models.NewValidationError(MsgUndecodable)
	}

	rc, err := file.open()
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("open upload: %w", err))
	}
	defer func() { _ = rc.Close() }()

	// The declared size may lie; never read more than the ceiling allows.
	data, err := io.ReadAll(io.LimitReader(rc, v.limits.MaxBytes+1))
	if err != nil {
		return nil, models.NewInternalError(fmt.Errorf("read upload: %w", err))
	}
	if int64(len(data)) > v.limits.MaxBytes {
		return nil, tooLarge(v.limits.MaxBytes)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewValidationError(MsgUndecodable)
	}
	if cfg.Width > v.limits.MaxWidth || cfg.Height > v.limits.MaxHeight {
		return nil, models.NewValidationError(MsgDimensionsTooBig)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, models.NewValidationError(MsgUndecodable)
	}

	ratio := SkinRatio(img)
	if ratio > v.limits.SkinRatioThreshold {
		return nil, models.NewValidationError(MsgInappropriate)
	}

	b := img.Bounds()
	return &ValidatedImage{
		Filename:    file.Filename,
		ContentType: contentType,
		Format:      format,
		Width:       b.Dx(),
		Height:      b.Dy(),
		SkinRatio:   ratio,
		Data:        data,
		Image:       img,
	}, nil
}

func tooLarge(maxBytes int64) error {
	return models.NewValidationError(fmt.Sprintf("%s (max %dMB)", MsgTooLarge, maxBytes/MiB))
}

func acceptedContentType(contentType string) (string, bool) {
	if contentType == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "image/jpeg", "image/jpg":
		return "image/jpeg", true
	case "image/png":
		return "image/png", true
	case "image/gif":
		return "image/gif", true
	default:
		return "", false
	}
}

// SkinRatio is the fraction of pixels classified as skin-colored.
func SkinRatio(img image.Image) float64 {
	b := img.Bounds()
	total := b.Dx() * b.Dy()
	if total <= 0 {
		return 0
	}

	skin := 0
	switch src := img.(type) {
	case *image.NRGBA:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := src.Pix[src.PixOffset(b.Min.X, y):]
			for x := 0; x < b.Dx(); x++ {
				i := x * 4
				if IsSkinColor(row[i], row[i+1], row[i+2]) {
					skin++
				}
			}
		}
	case *image.YCbCr:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				yi := src.YOffset(x, y)
				ci := src.COffset(x, y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				if IsSkinColor(r, g, bl) {
					skin++
				}
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				if IsSkinColor(c.R, c.G, c.B) {
					skin++
				}
			}
		}
	}
	return float64(skin) / float64(total)
}

// IsSkinColor classifies one 8-bit RGB pixel: hue in [0,50] degrees,
// saturation in [0.1,0.6], value in [0.2,1.0].
func IsSkinColor(r, g, b uint8) bool {
	h, s, v := RGBToHSV(r, g, b)
	return h >= 0 && h <= 50 &&
		s >= 0.1 && s <= 0.6 &&
		v >= 0.2 && v <= 1.0
}

// RGBToHSV converts to hue in whole degrees [0,360), saturation and value
// in [0,1].
func RGBToHSV(r, g, b uint8) (h, s, v float64) {
	nr := float64(r) / 255
	ng := float64(g) / 255
	nb := float64(b) / 255

	maxC := math.Max(nr, math.Max(ng, nb))
	minC := math.Min(nr, math.Min(ng, nb))
	delta := maxC - minC

	if delta != 0 {
		switch maxC {
		case nr:
			h = math.Mod((ng-nb)/delta, 6)
		case ng:
			h = (nb-nr)/delta + 2
		default:
			h = (nr-ng)/delta + 4
		}
	}
	// round half up, matching the browser's Math.round
	h = math.Floor(h*60 + 0.5)
	if h < 0 {
		h += 360
	}

	if maxC != 0 {
		s = delta / maxC
	}
	return h, s, maxC
}
