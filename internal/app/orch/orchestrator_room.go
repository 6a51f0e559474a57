package orch

import (
	"time"

	"github.com/dkeye/Camlink/internal/app"
	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/metrics"
	"github.com/rs/zerolog/log"
)

type joinedPayload struct {
	SessionID domain.SessionID `json:"session_id"`
	Role      domain.Role      `json:"role"`
	CameraID  string           `json:"camera_id,omitempty"`
	Members   []core.MemberDTO `json:"members"`
}

type cameraDisconnectedPayload struct {
	CameraID string `json:"camera_id"`
}

// OnConnect registers a new connection and puts it into the room of sid.
// An empty or unknown sid lands the connection in the default session, so
// clients that never send join_session still see default broadcasts.
func (o *Orchestrator) OnConnect(ms core.MemberSession, sid domain.SessionID) (domain.SessionID, error) {
	o.Registry.Connect(ms)
	return o.join(ms.ID(), sid, nil)
}

// OnJoinSession moves cid into the room of raw, where raw is whatever the
// client sent. A repeated join only refreshes role and camera id.
func (o *Orchestrator) OnJoinSession(cid core.ConnID, raw string, role string, cameraID string) (domain.SessionID, error) {
	var meta *domain.Member
	if role != "" || cameraID != "" {
		meta = domain.NewMember(domain.ParseRole(role), cameraID)
	}
	return o.join(cid, o.resolveRaw(raw), meta)
}

func (o *Orchestrator) join(cid core.ConnID, sid domain.SessionID, meta *domain.Member) (domain.SessionID, error) {
	sid = o.Registry.Resolve(sid)
	res, err := o.Registry.Join(cid, sid, meta)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("cid", string(cid)).Str("sid", string(sid)).Msg("join failed")
		return "", err
	}
	if res.Moved {
		o.afterLeave(res.Previous)
	}

	ms, ok := o.Registry.Member(cid)
	if !ok {
		return res.Session, nil
	}
	ack := joinedPayload{SessionID: res.Session, Role: domain.RoleViewer}
	if m := ms.Meta(); m != nil {
		ack.Role = m.Role
		ack.CameraID = m.CameraID
	}
	if room, ok := o.Registry.Room(res.Session); ok {
		ack.Members = room.MembersSnapshot()
	}
	msg, err := core.EncodeEvent(core.EventJoined, res.Session, ack)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("encode joined")
		return res.Session, nil
	}
	o.sendTo(ms, msg)
	return res.Session, nil
}

// OnViewerRequest optionally joins raw, then replies with the cached frame of
// the connection's session if there is one.
func (o *Orchestrator) OnViewerRequest(cid core.ConnID, raw string) {
	if raw != "" {
		if _, err := o.join(cid, o.resolveRaw(raw), nil); err != nil {
			return
		}
	}
	sid, ok := o.Registry.SessionOf(cid)
	if !ok {
		sid = domain.DefaultSession
	}
	ms, ok := o.Registry.Member(cid)
	if !ok {
		return
	}
	blob, ok := o.Registry.Snapshot(sid, o.quality())
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(sid)).Msg("viewer_request: no cached frame")
		return
	}
	o.Metrics.Inc(metrics.SnapshotsServed)
	o.sendTo(ms, core.BinaryMessage(blob))
}

// OnPing answers a keepalive on the event channel.
func (o *Orchestrator) OnPing(cid core.ConnID) {
	ms, ok := o.Registry.Member(cid)
	if !ok {
		return
	}
	msg, _ := core.EncodeEvent(core.EventPong, "", nil)
	o.sendTo(ms, msg)
}

// OnDisconnect releases everything the connection held. Nothing is delivered
// to it afterwards.
func (o *Orchestrator) OnDisconnect(cid core.ConnID) {
	res, left := o.Registry.Disconnect(cid)
	if left {
		o.afterLeave(res)
	}
	log.Info().Str("module", "orch").Str("cid", string(cid)).Msg("disconnected")
}

// afterLeave tells the remaining room that a camera went away.
func (o *Orchestrator) afterLeave(res app.LeaveResult) {
	if res.Emptied || res.Member == nil || !res.Member.Meta().IsCamera() {
		return
	}
	camID := res.Member.Meta().CameraID
	if camID == "" {
		camID = string(res.Member.ID())
	}
	msg, err := core.EncodeEvent(core.EventCameraDisconnected, res.Session, cameraDisconnectedPayload{CameraID: camID})
	if err != nil {
		return
	}
	o.publish(res.Session, res.Member.ID(), msg)
}

func (o *Orchestrator) CreateSession() domain.SessionID {
	o.Metrics.Inc(metrics.SessionsCreated)
	return o.Registry.CreateSession()
}

// Reap drops idle sessions; see Registry.Reap.
func (o *Orchestrator) Reap(ttl time.Duration) []domain.SessionID {
	reaped := o.Registry.Reap(o.clock().Now(), ttl)
	o.Metrics.Add(metrics.SessionsReaped, uint64(len(reaped)))
	return reaped
}

// resolveRaw turns a client-supplied id into a session. Malformed ids are
// treated like unknown ones.
func (o *Orchestrator) resolveRaw(raw string) domain.SessionID {
	if raw == "" {
		return domain.DefaultSession
	}
	sid, err := domain.ParseSessionID(raw)
	if err != nil {
		log.Debug().Err(err).Str("module", "orch").Msg("unusable session id, using default")
		return domain.DefaultSession
	}
	return o.Registry.Resolve(sid)
}
