// Package media turns frame blobs into images and back.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	DefaultQuality = 80
	// DefaultMaxPixels is a 4K UHD frame.
	DefaultMaxPixels = 3840 * 2160
)

var (
	ErrEmptyFrame    = errors.New("empty frame")
	ErrFrameTooLarge = errors.New("frame too large")
)

// Decode decodes a JPEG, PNG or WebP blob of at most DefaultMaxPixels.
// Browsers produce all three from canvas.toBlob depending on the requested
// type.
func Decode(blob []byte) (image.Image, error) {
	return DecodeLimit(blob, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel cap. The header is read first
// so an oversized frame is rejected before its pixels are allocated.
// A non-positive maxPixels disables the cap.
func DecodeLimit(blob []byte, maxPixels int) (image.Image, error) {
	if len(blob) == 0 {
		return nil, ErrEmptyFrame
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameTooLarge, cfg.Width, cfg.Height)
	}
	img, _, err := image.Decode(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// EncodeJPEG re-encodes img for transport. Out-of-range qualities fall back
// to DefaultQuality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, ErrEmptyFrame
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}
