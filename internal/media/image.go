package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

// DefaultMaxImageSize matches the limit shown on the report form.
const DefaultMaxImageSize = 4 << 20

var (
	ErrNoImage          = errors.New("an image is required")
	ErrImageTooLarge    = errors.New("image size cannot exceed 4MB")
	ErrUnsupportedImage = errors.New("only PNG, JPEG and GIF images are supported")
)

var supportedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// Image is an uploaded photo ready to be sent to a model: raw bytes, the
// sniffed media type and the base64 text form.
type Image struct {
	Data     []byte
	MIMEType string
	Base64   string
}

// DataURI returns the image as a data: URI.
func (img Image) DataURI() string {
	return DataURI(img.MIMEType, img.Data)
}

func DataURI(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// Prepare validates an upload and encodes it. The declared media type is
// only trusted when sniffing cannot decide. maxSize <= 0 uses
// DefaultMaxImageSize.
func Prepare(data []byte, declaredType string, maxSize int64) (Image, error) {
	if len(data) == 0 {
		return Image{}, ErrNoImage
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxImageSize
	}
	if int64(len(data)) > maxSize {
		return Image{}, ErrImageTooLarge
	}

	mimeType := DetectType(data, declaredType)
	if !supportedTypes[mimeType] {
		return Image{}, fmt.Errorf("%w (got %s)", ErrUnsupportedImage, mimeType)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: failed to decode image: %v", ErrUnsupportedImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return Image{}, fmt.Errorf("%w: empty %s image", ErrUnsupportedImage, format)
	}

	return Image{
		Data:     data,
		MIMEType: mimeType,
		Base64:   base64.StdEncoding.EncodeToString(data),
	}, nil
}

// DetectType sniffs the content type, falling back to the declared one.
func DetectType(data []byte, declaredType string) string {
	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = sniffed[:i]
	}
	if strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	declared := strings.ToLower(strings.TrimSpace(declaredType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = declared[:i]
	}
	if declared == "" || declared == "application/octet-stream" {
		return sniffed
	}
	return declared
}
