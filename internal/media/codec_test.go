package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeJPEG(t *testing.T) {
	blob, err := EncodeJPEG(testImage(), 90)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	img, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 8 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
}

func TestDecodePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if _, err := Decode(buf.Bytes()); err != nil {
		t.Fatalf("Decode png: %v", err)
	}
}

func TestDecodeFailures(t *testing.T) {
	if _, err := Decode(nil); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("Decode(nil) err = %v, want ErrEmptyFrame", err)
	}
	if _, err := Decode([]byte("definitely not an image")); err == nil {
		t.Fatalf("Decode(garbage) succeeded")
	}
}

func TestDecodeLimitRejectsOversizedFrames(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage()); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	tests := []struct {
		name      string
		maxPixels int
		wantErr   error
	}{
		{"under cap", 200, nil},
		{"exactly cap", 16 * 8, nil},
		{"over cap", 16*8 - 1, ErrFrameTooLarge},
		{"no cap", 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeLimit(buf.Bytes(), tt.maxPixels)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DecodeLimit err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeRejectsHugeCompressedPNG(t *testing.T) {
	// A flat 4000x3000 gray PNG compresses to a few KB but is well past 4K.
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4000, 3000))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if buf.Len() > 1<<20 {
		t.Fatalf("fixture unexpectedly large: %d bytes", buf.Len())
	}
	if _, err := Decode(buf.Bytes()); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Decode err = %v, want ErrFrameTooLarge", err)
	}
}

func TestEncodeJPEGClampsQuality(t *testing.T) {
	if _, err := EncodeJPEG(testImage(), 0); err != nil {
		t.Fatalf("EncodeJPEG(q=0): %v", err)
	}
	if _, err := EncodeJPEG(nil, 80); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("EncodeJPEG(nil) err = %v, want ErrEmptyFrame", err)
	}
}
