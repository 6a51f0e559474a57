package ws

import (
	"context"

	"github.com/dkeye/Camlink/internal/core"
)

// handleSignal covers offer, answer and ice-candidate. The server is not a
// WebRTC peer; it only relays between browsers.
func (g *Gateway) handleSignal(_ context.Context, c *Conn, env core.Envelope) {
	g.Orch.OnSignal(c.id, env.Type, env.Data)
}
