package orch

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownSignal    = errors.New("unknown signaling kind")
	ErrSignalNotJSON    = errors.New("signaling payload is not json")
	ErrMalformedSignal  = errors.New("malformed signaling payload")
	errSDPTypeMismatch  = errors.New("sdp type does not match event")
	errEmptyDescription = errors.New("empty sdp")
)

// ValidateSignal checks that data looks like what a browser peer sends for
// kind. ErrMalformedSignal means the payload is JSON but not the pion type;
// such payloads are still relayable. The payload itself is never rewritten.
func ValidateSignal(kind string, data json.RawMessage) error {
	switch kind {
	case core.EventOffer, core.EventAnswer, core.EventICECandidate:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSignal, kind)
	}
	if len(data) == 0 || !json.Valid(data) {
		return ErrSignalNotJSON
	}

	switch kind {
	case core.EventOffer, core.EventAnswer:
		var desc webrtc.SessionDescription
		if err := json.Unmarshal(data, &desc); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedSignal, err)
		}
		if desc.SDP == "" {
			return fmt.Errorf("%w: %v", ErrMalformedSignal, errEmptyDescription)
		}
		if !sdpTypeFits(kind, desc.Type) {
			return fmt.Errorf("%w: %v (%s)", ErrMalformedSignal, errSDPTypeMismatch, desc.Type)
		}
		return nil
	case core.EventICECandidate:
		var cand webrtc.ICECandidateInit
		if err := json.Unmarshal(data, &cand); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedSignal, err)
		}
	}
	return nil
}

func sdpTypeFits(kind string, t webrtc.SDPType) bool {
	switch t {
	case webrtc.SDPTypeUnknown:
		return true
	case webrtc.SDPTypeOffer:
		return kind == core.EventOffer
	case webrtc.SDPTypeAnswer, webrtc.SDPTypePranswer:
		return kind == core.EventAnswer
	default:
		return false
	}
}

// OnSignal relays a signaling message verbatim to every other connection in
// scope. The scope is the sender's room unless GlobalSignaling is set. Only
// unknown kinds and non-JSON payloads are dropped.
func (o *Orchestrator) OnSignal(cid core.ConnID, kind string, data json.RawMessage) {
	if err := ValidateSignal(kind, data); err != nil {
		o.Metrics.IncKind(metrics.SignalsMalformed, kind)
		if !errors.Is(err, ErrMalformedSignal) {
			log.Warn().Err(err).Str("module", "orch").Str("cid", string(cid)).Str("kind", kind).Msg("signal dropped")
			return
		}
		log.Warn().Err(err).Str("module", "orch").Str("cid", string(cid)).Str("kind", kind).Msg("signal is not a webrtc description, relaying as-is")
	}

	sid, joined := o.Registry.SessionOf(cid)
	if !joined {
		sid = domain.DefaultSession
	}
	msg := core.RelayEvent(kind, sid, data)

	if o.GlobalSignaling {
		for _, peer := range o.Registry.ConnsExcept(cid) {
			if err := peer.Signal().TrySend(msg); err != nil {
				o.handleDropped(nil, []core.MemberSession{peer}, msg)
			}
		}
	} else {
		o.publish(sid, cid, msg)
	}
	o.Metrics.IncKind(metrics.SignalsRelayed, kind)
	log.Debug().Str("module", "orch").Str("cid", string(cid)).Str("sid", string(sid)).Str("kind", kind).Bool("global", o.GlobalSignaling).Msg("signal relayed")
}
