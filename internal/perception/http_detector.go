package perception

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"github.com/dkeye/Camlink/internal/media"
)

const maxDetectorResponse = 1 << 20

var ErrDetectorStatus = errors.New("detector returned non-200 status")

// HTTPDetector posts each frame as JPEG to a landmark sidecar and decodes
// its Detection JSON reply.
//
// Frames are posted exactly as the camera sent them, never mirrored. The
// sidecar must flip each frame horizontally before running detection and
// report handedness and landmarks in the flipped image, the selfie-view
// convention that CountFingers' thumb test assumes. A sidecar that skips
// the flip swaps every hand's Left and Right label.
type HTTPDetector struct {
	URL     string
	Quality int
	Client  *http.Client
}

func NewHTTPDetector(url string, timeout time.Duration) *HTTPDetector {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &HTTPDetector{
		URL:     url,
		Quality: media.DefaultQuality,
		Client:  &http.Client{Timeout: timeout},
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, img image.Image) (Detection, error) {
	blob, err := media.EncodeJPEG(img, d.Quality)
	if err != nil {
		return Detection{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(blob))
	if err != nil {
		return Detection{}, fmt.Errorf("build detector request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.Client.Do(req)
	if err != nil {
		return Detection{}, fmt.Errorf("detector request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDetectorResponse))
		return Detection{}, fmt.Errorf("%w: %d", ErrDetectorStatus, resp.StatusCode)
	}
	var det Detection
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxDetectorResponse)).Decode(&det); err != nil {
		return Detection{}, fmt.Errorf("decode detector response: %w", err)
	}
	return det, nil
}
