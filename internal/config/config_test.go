package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Decode(New())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.ThrottleInterval != 2*time.Second {
		t.Fatalf("throttle = %v, want 2s", cfg.ThrottleInterval)
	}
	if cfg.Port != 8080 || cfg.Mode != "release" {
		t.Fatalf("unexpected port/mode: %d/%s", cfg.Port, cfg.Mode)
	}
	if cfg.Signaling.Global {
		t.Fatalf("signaling must be room scoped by default")
	}
	if cfg.Perception.Workers != 4 || cfg.Perception.LaneDepth != 8 {
		t.Fatalf("unexpected perception defaults: %+v", cfg.Perception)
	}
	if cfg.MaxFramePixels != 3840*2160 {
		t.Fatalf("max_frame_pixels = %d", cfg.MaxFramePixels)
	}
	if len(cfg.ICEServers) != 1 || len(cfg.ICEServers[0].URLs) != 1 {
		t.Fatalf("unexpected ice servers: %+v", cfg.ICEServers)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CAMLINK_PORT", "9090")
	t.Setenv("CAMLINK_THROTTLE_INTERVAL", "500ms")
	t.Setenv("CAMLINK_PERCEPTION_WORKERS", "0")
	t.Setenv("CAMLINK_SIGNALING_GLOBAL", "true")

	cfg, err := Decode(New())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Port)
	}
	if cfg.ThrottleInterval != 500*time.Millisecond {
		t.Fatalf("throttle = %v, want 500ms", cfg.ThrottleInterval)
	}
	if cfg.Perception.Workers != 0 {
		t.Fatalf("workers = %d, want 0", cfg.Perception.Workers)
	}
	if !cfg.Signaling.Global {
		t.Fatalf("signaling.global override ignored")
	}
}

func TestValidate(t *testing.T) {
	v := New()
	v.Set("port", 0)
	if _, err := Decode(v); !errors.Is(err, ErrInvalidPort) {
		t.Fatalf("err = %v, want ErrInvalidPort", err)
	}

	v = New()
	v.Set("perception.workers", -1)
	if _, err := Decode(v); !errors.Is(err, ErrInvalidWorkers) {
		t.Fatalf("err = %v, want ErrInvalidWorkers", err)
	}
}
