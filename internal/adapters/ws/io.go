package ws

import (
	"context"
	"time"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (g *Gateway) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(g.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "adapters.ws").Str("cid", string(c.id)).Msg("writePump ctx done")
			return
		case m, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.ws").Msg("writePump set deadline")
				return
			}
			mt := websocket.TextMessage
			if m.Binary {
				mt = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(mt, m.Data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("cid", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Str("cid", string(c.id)).Msg("ping failed")
				return
			}
		}
	}
}

func (g *Gateway) readPump(ctx context.Context, cancel context.CancelFunc, c *Conn) {
	defer func() {
		log.Info().Str("module", "adapters.ws").Str("cid", string(c.id)).Msg("readPump closing")
		g.Orch.OnDisconnect(c.id)
		cancel()
		c.Close()
	}()

	pongWait := g.opts.PingPeriod * 10 / 9
	c.conn.SetReadLimit(g.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("module", "adapters.ws").Str("cid", string(c.id)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.limiter.Allow() {
			g.Metrics.Inc(metrics.EventsRateLimited)
			continue
		}
		g.dispatch(ctx, c, mt, data)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *Conn, mt int, data []byte) {
	if mt == websocket.BinaryMessage {
		// Legacy clients push raw frames with no envelope.
		g.Orch.OnFrame(ctx, c.id, "", data)
		return
	}
	env, err := core.DecodeEnvelope(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Str("cid", string(c.id)).Msg("bad json")
		return
	}
	h, ok := g.handler(env.Type)
	if !ok {
		log.Warn().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown event")
		return
	}
	h(ctx, c, env)
}
