package rtc

import (
	"errors"
	"testing"

	"github.com/dkeye/Camlink/internal/config"
)

func TestICEServers(t *testing.T) {
	servers, err := ICEServers([]config.ICEServer{
		{URLs: []string{" stun:stun.example.com:3478 ", ""}},
		{URLs: []string{"turn:turn.example.com:3478?transport=udp"}, Username: "user", Credential: "pass"},
	})
	if err != nil {
		t.Fatalf("ICEServers: %v", err)
	}
	if len(servers) != 2 {
		t.Fatalf("got %d servers", len(servers))
	}
	if got := servers[0].URLs; len(got) != 1 || got[0] != "stun:stun.example.com:3478" {
		t.Fatalf("unexpected stun urls: %#v", got)
	}
	if cred, ok := servers[1].Credential.(string); !ok || cred != "pass" {
		t.Fatalf("unexpected credential: %#v", servers[1].Credential)
	}
}

func TestICEServersDefaults(t *testing.T) {
	servers, err := ICEServers(nil)
	if err != nil || len(servers) != 1 {
		t.Fatalf("defaults: %v %v", servers, err)
	}
}

func TestICEServersRejects(t *testing.T) {
	cases := []struct {
		name string
		in   config.ICEServer
		want error
	}{
		{"no urls", config.ICEServer{}, ErrNoURLs},
		{"bad scheme", config.ICEServer{URLs: []string{"http://example.com"}}, ErrUnsupportedURL},
		{"turn without creds", config.ICEServer{URLs: []string{"turns:turn.example.com"}}, ErrTURNCredentials},
	}
	for _, tc := range cases {
		if _, err := ICEServers([]config.ICEServer{tc.in}); !errors.Is(err, tc.want) {
			t.Errorf("%s: err = %v, want %v", tc.name, err, tc.want)
		}
	}
}
