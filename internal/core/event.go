package core

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/Camlink/internal/domain"
)

// Event names carried in Envelope.Type.
const (
	EventJoinSession        = "join_session"
	EventJoined             = "joined"
	EventFrame              = "frame"
	EventResult             = "result"
	EventOffer              = "offer"
	EventAnswer             = "answer"
	EventICECandidate       = "ice-candidate"
	EventViewerRequest      = "viewer_request"
	EventCameraDisconnected = "camera_disconnected"
	EventPing               = "ping"
	EventPong               = "pong"
	EventError              = "error"
)

// Envelope is the JSON shape of every text message on the event channel.
type Envelope struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"session_id,omitempty"`
	Data      json.RawMessage  `json:"data,omitempty"`
}

// EncodeEvent marshals data into an envelope text message.
func EncodeEvent(typ string, sid domain.SessionID, data any) (Message, error) {
	env := Envelope{Type: typ, SessionID: sid}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s: %w", typ, err)
		}
		env.Data = raw
	}
	b, err := json.Marshal(env)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s envelope: %w", typ, err)
	}
	return TextMessage(b), nil
}

// RelayEvent wraps an already-encoded payload without touching its bytes.
// raw must be valid JSON, which holds for anything DecodeEnvelope returned.
func RelayEvent(typ string, sid domain.SessionID, raw json.RawMessage) Message {
	head, _ := json.Marshal(Envelope{Type: typ, SessionID: sid})
	if len(raw) == 0 {
		return TextMessage(head)
	}
	b := make([]byte, 0, len(head)+len(raw)+8)
	b = append(b, head[:len(head)-1]...)
	b = append(b, `,"data":`...)
	b = append(b, raw...)
	b = append(b, '}')
	return TextMessage(b)
}

// DecodeEnvelope parses an inbound text message.
func DecodeEnvelope(b []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Envelope{}, fmt.Errorf("bad envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("bad envelope: missing type")
	}
	return env, nil
}
