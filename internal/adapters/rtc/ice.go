// Package rtc converts configured ICE servers for browser peers. The server
// never terminates WebRTC itself; peers connect to each other directly.
package rtc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/Camlink/internal/config"
	"github.com/pion/webrtc/v4"
)

var (
	ErrNoURLs          = errors.New("missing urls")
	ErrUnsupportedURL  = errors.New("unsupported url scheme")
	ErrTURNCredentials = errors.New("turn urls require username and credential")
)

var defaultICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302"}},
}

// ICEServers validates and converts the configured servers. An empty list
// falls back to a public STUN server.
func ICEServers(in []config.ICEServer) ([]webrtc.ICEServer, error) {
	if len(in) == 0 {
		return defaultICEServers, nil
	}
	out := make([]webrtc.ICEServer, 0, len(in))
	for i, s := range in {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		server := webrtc.ICEServer{URLs: urls, Username: strings.TrimSpace(s.Username)}
		if cred := strings.TrimSpace(s.Credential); cred != "" {
			server.Credential = cred
		}
		if err := validate(server); err != nil {
			return nil, fmt.Errorf("ice_servers[%d]: %w", i, err)
		}
		out = append(out, server)
	}
	return out, nil
}

func validate(s webrtc.ICEServer) error {
	if len(s.URLs) == 0 {
		return ErrNoURLs
	}
	turn := false
	for _, u := range s.URLs {
		switch {
		case strings.HasPrefix(u, "stun:"), strings.HasPrefix(u, "stuns:"):
		case strings.HasPrefix(u, "turn:"), strings.HasPrefix(u, "turns:"):
			turn = true
		default:
			return fmt.Errorf("%w: %q", ErrUnsupportedURL, u)
		}
	}
	if turn {
		cred, _ := s.Credential.(string)
		if s.Username == "" || cred == "" {
			return ErrTURNCredentials
		}
	}
	return nil
}
