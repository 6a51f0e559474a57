package orch

import (
	"context"
	"encoding/json"
	"image"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/rs/zerolog/log"
)

// OnDecodedFrame schedules perception for one frame and publishes the result
// to the whole room. A decode or detector failure still publishes an empty
// result.
func (o *Orchestrator) OnDecodedFrame(ctx context.Context, sid domain.SessionID, img image.Image, decodeErr error) {
	job := func(jobCtx context.Context) {
		var res domain.PerceptionResult
		if decodeErr == nil {
			r, err := o.adapter().Analyze(jobCtx, img)
			if err != nil {
				o.Metrics.Inc(metrics.PerceptionFailures)
				log.Debug().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("perception failed")
			} else {
				res = r
			}
		}
		o.publishResult(sid, res)
	}

	if o.Pool == nil {
		job(ctx)
		return
	}
	if err := o.Pool.Submit(ctx, sid, job); err != nil {
		o.Metrics.Inc(metrics.PerceptionRejected)
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("perception job rejected")
	}
}

func (o *Orchestrator) publishResult(sid domain.SessionID, res domain.PerceptionResult) {
	msg, err := core.EncodeEvent(core.EventResult, sid, res)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode result")
		return
	}
	o.publish(sid, "", msg)
	o.Metrics.Inc(metrics.ResultsPublished)
}

// OnClientResult relays a result computed on the client to the rest of its
// room without interpreting it.
func (o *Orchestrator) OnClientResult(cid core.ConnID, raw string, data json.RawMessage) {
	sid := o.frameSession(cid, raw)
	o.publish(sid, cid, core.RelayEvent(core.EventResult, sid, data))
}
