package media

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPrepare(t *testing.T) {
	data := pngBytes(t)

	t.Run("ValidPNG", func(t *testing.T) {
		img, err := Prepare(data, "application/octet-stream", 0)
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MIMEType)
		assert.Equal(t, base64.StdEncoding.EncodeToString(data), img.Base64)
		assert.True(t, strings.HasPrefix(img.DataURI(), "data:image/png;base64,"))
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := Prepare(nil, "image/png", 0)
		assert.ErrorIs(t, err, ErrNoImage)
	})

	t.Run("TooLarge", func(t *testing.T) {
		_, err := Prepare(data, "image/png", int64(len(data)-1))
		assert.ErrorIs(t, err, ErrImageTooLarge)
	})

	t.Run("NotAnImage", func(t *testing.T) {
		_, err := Prepare([]byte("hello, this is plain text"), "text/plain", 0)
		assert.ErrorIs(t, err, ErrUnsupportedImage)
	})

	t.Run("DeclaredImageButGarbage", func(t *testing.T) {
		_, err := Prepare([]byte("not really a png"), "image/png", 0)
		assert.ErrorIs(t, err, ErrUnsupportedImage)
	})
}

func TestDetectType(t *testing.T) {
	assert.Equal(t, "image/png", DetectType(pngBytes(t), "image/jpeg"))
	assert.Equal(t, "image/jpeg", DetectType([]byte("xx"), "image/jpeg; charset=binary"))
	assert.Equal(t, "text/plain", DetectType([]byte("plain text"), ""))
}
