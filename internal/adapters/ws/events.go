package ws

import (
	"bytes"
	"encoding/json"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/rs/zerolog/log"
)

func (g *Gateway) registerDefaults() {
	g.On(core.EventJoinSession, g.handleJoin)
	g.On(core.EventViewerRequest, g.handleViewerRequest)
	g.On(core.EventFrame, g.handleFrame)
	g.On(core.EventResult, g.handleResult)
	g.On(core.EventOffer, g.handleSignal)
	g.On(core.EventAnswer, g.handleSignal)
	g.On(core.EventICECandidate, g.handleSignal)
	g.On(core.EventPing, g.handlePing)
}

// sessionRef is the data of join_session and viewer_request: either a bare
// id string or an object. cameraId is what older phone clients send.
type sessionRef struct {
	SessionID   string `json:"session_id"`
	Role        string `json:"role"`
	CameraID    string `json:"camera_id"`
	CameraIDOld string `json:"cameraId"`
}

func parseSessionRef(env core.Envelope) (sessionRef, error) {
	var ref sessionRef
	data := bytes.TrimSpace(env.Data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
	case data[0] == '"':
		if err := json.Unmarshal(data, &ref.SessionID); err != nil {
			return sessionRef{}, err
		}
	default:
		if err := json.Unmarshal(data, &ref); err != nil {
			return sessionRef{}, err
		}
	}
	if ref.SessionID == "" {
		ref.SessionID = string(env.SessionID)
	}
	if ref.CameraID == "" {
		ref.CameraID = ref.CameraIDOld
	}
	return ref, nil
}

func (g *Gateway) sendError(c *Conn, reason string) {
	msg, err := core.EncodeEvent(core.EventError, "", map[string]string{"error": reason})
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.ws").Msg("encode error event")
		return
	}
	_ = c.TrySend(msg)
}
