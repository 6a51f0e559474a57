// Package ws is the WebSocket connection gateway: one socket per client,
// JSON envelopes for events and binary messages for raw frames.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Camlink/internal/app/orch"
	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler processes one inbound event for c.
type Handler func(ctx context.Context, c *Conn, env core.Envelope)

type Options struct {
	ReadLimit       int64
	PingPeriod      time.Duration
	SendBuffer      int
	EventsPerSecond float64
	EventBurst      int
}

func (o Options) withDefaults() Options {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4 << 20
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
	return o
}

type Gateway struct {
	Orch    *orch.Orchestrator
	Metrics *metrics.Metrics

	opts     Options
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewGateway(o *orch.Orchestrator, m *metrics.Metrics, opts Options) *Gateway {
	g := &Gateway{
		Orch:    o,
		Metrics: m,
		opts:    opts.withDefaults(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		handlers: make(map[string]Handler),
	}
	g.registerDefaults()
	return g
}

// On registers h for event, replacing any previous handler.
func (g *Gateway) On(event string, h Handler) {
	g.mu.Lock()
	g.handlers[event] = h
	g.mu.Unlock()
}

func (g *Gateway) handler(event string) (Handler, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	h, ok := g.handlers[event]
	return h, ok
}

// Accept describes who is connecting.
type Accept struct {
	Session  domain.SessionID
	Role     domain.Role
	CameraID string
}

// Handle upgrades the request and runs the connection until it closes. The
// connection joins a.Session (or the default session) right away.
func (g *Gateway) Handle(ctx context.Context, w http.ResponseWriter, r *http.Request, a Accept) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("ws upgrade")
		return
	}

	conn := newConn(core.ConnID(uuid.NewString()), ws, g.opts)
	ctx, cancel := context.WithCancel(ctx)

	role := a.Role
	if role == "" {
		role = domain.RoleViewer
	}
	ms := core.NewMemberSession(conn.ID(), domain.NewMember(role, a.CameraID), conn)
	sid, err := g.Orch.OnConnect(ms, a.Session)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("connect")
		cancel()
		conn.Close()
		return
	}
	log.Info().Str("module", "adapters.ws").Str("cid", string(conn.ID())).Str("sid", string(sid)).Str("role", string(role)).Msg("new WS connection")

	go g.writePump(ctx, conn)
	go g.readPump(ctx, cancel, conn)
}
