package ws

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/rs/zerolog/log"
)

// framePayload is the data of a frame event. Blob is base64 in JSON.
type framePayload struct {
	Blob      []byte `json:"blob"`
	SessionID string `json:"session_id"`
}

func (g *Gateway) handleFrame(ctx context.Context, c *Conn, env core.Envelope) {
	var p framePayload
	data := bytes.TrimSpace(env.Data)
	if len(data) > 0 && data[0] == '"' {
		// Bare base64 string.
		if err := json.Unmarshal(data, &p.Blob); err != nil {
			log.Debug().Err(err).Str("module", "adapters.ws").Msg("bad frame blob")
		}
	} else if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			log.Debug().Err(err).Str("module", "adapters.ws").Msg("bad frame payload")
		}
	}
	if p.SessionID == "" {
		p.SessionID = string(env.SessionID)
	}
	// An unreadable payload becomes an empty frame, which the relay ignores.
	g.Orch.OnFrame(ctx, c.id, p.SessionID, p.Blob)
}

func (g *Gateway) handleResult(_ context.Context, c *Conn, env core.Envelope) {
	if len(env.Data) == 0 {
		return
	}
	g.Orch.OnClientResult(c.id, string(env.SessionID), env.Data)
}
