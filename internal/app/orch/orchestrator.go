package orch

import (
	"github.com/dkeye/Camlink/internal/app"
	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/media"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/dkeye/Camlink/internal/perception"
	"github.com/rs/zerolog/log"
)

// Orchestrator routes gateway events through the registry, the perception
// pool and the rooms. Adapters call the On* methods; nothing here touches a
// socket directly.
type Orchestrator struct {
	Registry *app.Registry
	Policy   app.Policy
	Pool     *perception.Pool
	Adapter  perception.Adapter
	Metrics  *metrics.Metrics
	Clock    app.Clock

	SnapshotQuality int
	// MaxFramePixels caps decoded frame size; zero means media.DefaultMaxPixels.
	MaxFramePixels int
	// GlobalSignaling relays offer/answer/ice-candidate to every connection
	// instead of the sender's room.
	GlobalSignaling bool
}

func (o *Orchestrator) clock() app.Clock {
	if o.Clock == nil {
		return app.RealClock{}
	}
	return o.Clock
}

func (o *Orchestrator) adapter() perception.Adapter {
	if o.Adapter == nil {
		return perception.NewAnalyzer(nil)
	}
	return o.Adapter
}

func (o *Orchestrator) quality() int {
	if o.SnapshotQuality <= 0 {
		return media.DefaultQuality
	}
	return o.SnapshotQuality
}

func (o *Orchestrator) maxPixels() int {
	if o.MaxFramePixels <= 0 {
		return media.DefaultMaxPixels
	}
	return o.MaxFramePixels
}

// publish fans msg out to the room of sid, excluding from, and applies the
// backpressure policy to members that could not take it.
func (o *Orchestrator) publish(sid domain.SessionID, from core.ConnID, msg core.Message) int {
	room, ok := o.Registry.Room(sid)
	if !ok {
		return 0
	}
	res := room.Broadcast(from, msg)
	o.handleDropped(room, res.Dropped, msg)
	return res.SendTo
}

func (o *Orchestrator) handleDropped(room core.RoomService, dropped []core.MemberSession, msg core.Message) {
	for _, slow := range dropped {
		o.Metrics.IncKind(metrics.BackpressureDrops, messageKind(msg))
		if o.Policy == nil {
			continue
		}
		switch o.Policy.OnBackPressure(room, slow, msg) {
		case app.KickMember:
			o.Kick(slow)
		case app.MarkSlow:
			log.Debug().Str("module", "orch").Str("cid", string(slow.ID())).Msg("slow member")
		case app.DropFrame, app.NoAction:
		}
	}
}

func messageKind(msg core.Message) string {
	if msg.Binary {
		return "binary"
	}
	return "text"
}

// sendTo delivers msg to a single connection.
func (o *Orchestrator) sendTo(ms core.MemberSession, msg core.Message) {
	if err := ms.Signal().TrySend(msg); err != nil {
		o.Metrics.IncKind(metrics.BackpressureDrops, messageKind(msg))
		log.Debug().Err(err).Str("module", "orch").Str("cid", string(ms.ID())).Msg("direct send dropped")
	}
}

// Kick closes the member's transport. The adapter's read pump then reports
// the disconnect, which releases the membership.
func (o *Orchestrator) Kick(ms core.MemberSession) {
	o.Metrics.Inc(metrics.MembersKicked)
	log.Warn().Str("module", "orch").Str("cid", string(ms.ID())).Msg("kicking member")
	ms.Signal().Close()
}
