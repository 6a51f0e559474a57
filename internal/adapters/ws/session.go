package ws

import (
	"context"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/rs/zerolog/log"
)

func (g *Gateway) handleJoin(_ context.Context, c *Conn, env core.Envelope) {
	ref, err := parseSessionRef(env)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("bad join payload")
		g.sendError(c, "bad_payload")
		return
	}
	log.Info().Str("module", "adapters.ws").Str("cid", string(c.id)).Str("sid", ref.SessionID).Str("role", ref.Role).Msg("join")
	if _, err := g.Orch.OnJoinSession(c.id, ref.SessionID, ref.Role, ref.CameraID); err != nil {
		g.sendError(c, "join_failed")
	}
}

func (g *Gateway) handleViewerRequest(_ context.Context, c *Conn, env core.Envelope) {
	ref, err := parseSessionRef(env)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("bad viewer_request payload")
		ref = sessionRef{}
	}
	g.Orch.OnViewerRequest(c.id, ref.SessionID)
}
