package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Camlink/internal/app"
	"github.com/dkeye/Camlink/internal/app/orch"
	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/media"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/dkeye/Camlink/internal/perception"
	"github.com/gorilla/websocket"
)

type testServer struct {
	srv  *httptest.Server
	orch *orch.Orchestrator
	m    *metrics.Metrics
}

func startServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	m := metrics.New()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(nil, time.Hour),
		Policy:   app.LenientPolicy{},
		Pool:     perception.NewPool(0, 1),
		Adapter: perception.AdapterFunc(func(context.Context, image.Image) (domain.PerceptionResult, error) {
			return domain.PerceptionResult{Body: &domain.BodyKeypoints{Head: domain.Point{X: 0.5, Y: 0.1}}}, nil
		}),
		Metrics: m,
	}
	g := NewGateway(o, m, opts)
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		g.Handle(ctx, w, r, Accept{
			Session:  domain.SessionID(q.Get("session")),
			Role:     domain.ParseRole(q.Get("role")),
			CameraID: q.Get("camera_id"),
		})
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return &testServer{srv: srv, orch: o, m: m}
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/?" + query
	c, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// nextEvent reads until a text event of typ arrives.
func nextEvent(t *testing.T, c *websocket.Conn, typ string) core.Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = c.SetReadDeadline(deadline)
		mt, msg, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		env, err := core.DecodeEnvelope(msg)
		if err != nil {
			t.Fatalf("bad envelope %s: %v", msg, err)
		}
		if env.Type == typ {
			return env
		}
	}
}

func nextBinary(t *testing.T, c *websocket.Conn) []byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = c.SetReadDeadline(deadline)
		mt, msg, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for binary frame: %v", err)
		}
		if mt == websocket.BinaryMessage {
			return msg
		}
	}
}

func sendEvent(t *testing.T, c *websocket.Conn, typ string, data any) {
	t.Helper()
	msg, err := core.EncodeEvent(typ, "", data)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := c.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	blob, err := media.EncodeJPEG(image.NewGray(image.Rect(0, 0, 8, 8)), 90)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return blob
}

func TestGatewayRelaysFramesAndResults(t *testing.T) {
	s := startServer(t, Options{})
	sid := s.orch.CreateSession()

	phone := s.dial(t, "session="+string(sid)+"&role=camera&camera_id=front")
	joined := nextEvent(t, phone, core.EventJoined)
	if joined.SessionID != sid {
		t.Fatalf("phone joined %q, want %q", joined.SessionID, sid)
	}
	viewer := s.dial(t, "session="+string(sid))
	nextEvent(t, viewer, core.EventJoined)

	blob := testJPEG(t)
	if err := phone.WriteMessage(websocket.BinaryMessage, blob); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := nextBinary(t, viewer); !bytes.Equal(got, blob) {
		t.Fatalf("relayed frame differs")
	}
	res := nextEvent(t, viewer, core.EventResult)
	var pr domain.PerceptionResult
	if err := json.Unmarshal(res.Data, &pr); err != nil || pr.Body == nil {
		t.Fatalf("result %s err %v", res.Data, err)
	}

	// Enveloped frames with base64 blobs take the same path.
	sendEvent(t, phone, core.EventFrame, map[string]any{"blob": blob})
	nextEvent(t, viewer, core.EventResult)
	nextEvent(t, phone, core.EventResult)
}

func TestGatewaySignalingAndJoin(t *testing.T) {
	s := startServer(t, Options{})
	sid := s.orch.CreateSession()

	a := s.dial(t, "")
	nextEvent(t, a, core.EventJoined)
	b := s.dial(t, "")
	nextEvent(t, b, core.EventJoined)

	sendEvent(t, a, core.EventJoinSession, string(sid))
	if env := nextEvent(t, a, core.EventJoined); env.SessionID != sid {
		t.Fatalf("a joined %q", env.SessionID)
	}
	sendEvent(t, b, core.EventJoinSession, map[string]string{"session_id": string(sid), "role": "viewer"})
	nextEvent(t, b, core.EventJoined)

	sendEvent(t, a, core.EventOffer, map[string]string{"type": "offer", "sdp": "v=0"})
	env := nextEvent(t, b, core.EventOffer)
	var desc map[string]string
	if err := json.Unmarshal(env.Data, &desc); err != nil || desc["sdp"] != "v=0" {
		t.Fatalf("offer payload %s", env.Data)
	}

	sendEvent(t, b, core.EventPing, nil)
	nextEvent(t, b, core.EventPong)
}

func TestGatewayViewerRequestSnapshot(t *testing.T) {
	s := startServer(t, Options{})
	sid := s.orch.CreateSession()

	phone := s.dial(t, "session="+string(sid)+"&role=camera")
	nextEvent(t, phone, core.EventJoined)
	if err := phone.WriteMessage(websocket.BinaryMessage, testJPEG(t)); err != nil {
		t.Fatalf("write: %v", err)
	}
	nextEvent(t, phone, core.EventResult)

	late := s.dial(t, "")
	nextEvent(t, late, core.EventJoined)
	sendEvent(t, late, core.EventViewerRequest, map[string]string{"session_id": string(sid)})
	snap := nextBinary(t, late)
	if _, err := media.Decode(snap); err != nil {
		t.Fatalf("snapshot is not an image: %v", err)
	}
}

func TestGatewayCameraDisconnect(t *testing.T) {
	s := startServer(t, Options{})
	sid := s.orch.CreateSession()

	phone := s.dial(t, "session="+string(sid)+"&role=camera&camera_id=rear")
	nextEvent(t, phone, core.EventJoined)
	viewer := s.dial(t, "session="+string(sid))
	nextEvent(t, viewer, core.EventJoined)

	_ = phone.Close()
	env := nextEvent(t, viewer, core.EventCameraDisconnected)
	if !bytes.Contains(env.Data, []byte(`"rear"`)) {
		t.Fatalf("camera_disconnected payload %s", env.Data)
	}
	eventually(t, "membership release", func() bool {
		room, ok := s.orch.Registry.Room(sid)
		return ok && room.MemberCount() == 1
	})
}

func TestGatewayRateLimit(t *testing.T) {
	s := startServer(t, Options{EventsPerSecond: 0.001, EventBurst: 1})
	c := s.dial(t, "")
	nextEvent(t, c, core.EventJoined)

	for i := 0; i < 3; i++ {
		sendEvent(t, c, core.EventPing, nil)
	}
	nextEvent(t, c, core.EventPong)
	eventually(t, "rate-limited events", func() bool {
		return s.m.Get(metrics.EventsRateLimited) == 2
	})
}

func TestGatewayIgnoresGarbage(t *testing.T) {
	s := startServer(t, Options{})
	c := s.dial(t, "")
	nextEvent(t, c, core.EventJoined)

	for _, raw := range []string{`not json`, `{"type":"no_such_event"}`, `{"data":1}`} {
		if err := c.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	sendEvent(t, c, core.EventJoinSession, 42)
	env := nextEvent(t, c, core.EventError)
	if !bytes.Contains(env.Data, []byte("bad_payload")) {
		t.Fatalf("error payload %s", env.Data)
	}
	sendEvent(t, c, core.EventPing, nil)
	nextEvent(t, c, core.EventPong)
}
