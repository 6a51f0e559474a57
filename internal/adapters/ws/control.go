package ws

import (
	"context"

	"github.com/dkeye/Camlink/internal/core"
)

func (g *Gateway) handlePing(_ context.Context, c *Conn, _ core.Envelope) {
	g.Orch.OnPing(c.id)
}
