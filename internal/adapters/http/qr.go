package http

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/dkeye/Camlink/internal/domain"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// SessionURL is the link a phone opens to join sid as a camera.
func SessionURL(base string, sid domain.SessionID) string {
	return strings.TrimRight(base, "/") + "/s/" + string(sid)
}

// QRCode renders url as a PNG.
func QRCode(url string) ([]byte, error) {
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	return png, nil
}

// QRDataURL is QRCode packed into a data: URL for <img src>.
func QRDataURL(url string) (string, error) {
	png, err := QRCode(url)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// baseURL prefers the configured public URL. Otherwise it is derived from the
// request, honoring a TLS-terminating proxy.
func baseURL(publicURL string, r *http.Request) string {
	if publicURL != "" {
		return publicURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
