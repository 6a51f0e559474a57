package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/media"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/rs/zerolog/log"
)

// OnFrame handles one inbound camera frame. raw is the session id from the
// payload, empty when absent.
//
// The raw blob is relayed to the other room members at most once per
// throttle interval. Perception runs on every frame, decodable or not.
func (o *Orchestrator) OnFrame(ctx context.Context, cid core.ConnID, raw string, blob []byte) {
	o.Metrics.Inc(metrics.FramesReceived)
	if len(blob) == 0 {
		o.Metrics.Inc(metrics.FramesEmpty)
		return
	}
	sid := o.frameSession(cid, raw)
	now := o.clock().Now()

	img, decodeErr := media.DecodeLimit(blob, o.maxPixels())
	if decodeErr != nil {
		o.Metrics.IncKind(metrics.DecodeFailures, decodeReason(decodeErr))
		log.Debug().Err(decodeErr).Str("module", "orch").Str("sid", string(sid)).Int("bytes", len(blob)).Msg("frame decode failed")
	} else {
		o.Registry.RecordFrame(sid, img, now)
	}

	if o.Registry.ShouldForward(sid, now) {
		n := o.publish(sid, cid, core.BinaryMessage(blob))
		o.Metrics.Inc(metrics.FramesForwarded)
		log.Trace().Str("module", "orch").Str("sid", string(sid)).Int("sent_to", n).Msg("frame forwarded")
	} else {
		o.Metrics.Inc(metrics.FramesThrottled)
	}

	o.OnDecodedFrame(ctx, sid, img, decodeErr)
}

// frameSession picks the session a frame belongs to: the payload id first,
// then the sender's room, then the default session.
func (o *Orchestrator) frameSession(cid core.ConnID, raw string) domain.SessionID {
	if raw != "" {
		return o.resolveRaw(raw)
	}
	if sid, ok := o.Registry.SessionOf(cid); ok {
		return sid
	}
	return domain.DefaultSession
}

func decodeReason(err error) string {
	if errors.Is(err, media.ErrFrameTooLarge) {
		return "too_large"
	}
	return "corrupt"
}
