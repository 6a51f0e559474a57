package app

import (
	"errors"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/dkeye/Camlink/internal/core"
	"github.com/dkeye/Camlink/internal/domain"
	"github.com/dkeye/Camlink/internal/media"
	"github.com/rs/zerolog/log"
)

const DefaultThrottleInterval = 2 * time.Second

var ErrUnknownConn = errors.New("unknown connection")

// sessionEntry is the per-session state. Frame and throttle fields are
// guarded by mu; membership changes additionally hold Registry.mu so an
// entry is never deleted while someone joins it.
type sessionEntry struct {
	sid  domain.SessionID
	room core.RoomService

	mu          sync.Mutex
	dead        bool
	lastFrame   image.Image
	lastFrameAt time.Time
	lastForward time.Time
	lastActive  time.Time
	cameras     map[string]core.ConnID
}

type connEntry struct {
	session core.MemberSession
	sid     domain.SessionID
	joined  bool
}

type Registry struct {
	clock    Clock
	throttle time.Duration

	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
	conns    map[core.ConnID]*connEntry

	// minted maps ids handed out by CreateSession to their last join or
	// leave. Entries outlive room state and are only dropped by Reap.
	minted map[domain.SessionID]time.Time
}

func NewRegistry(clock Clock, throttle time.Duration) *Registry {
	if clock == nil {
		clock = RealClock{}
	}
	return &Registry{
		clock:    clock,
		throttle: throttle,
		sessions: make(map[domain.SessionID]*sessionEntry),
		conns:    make(map[core.ConnID]*connEntry),
		minted:   make(map[domain.SessionID]time.Time),
	}
}

// CreateSession mints a new session id. Room state is created on first join.
func (r *Registry) CreateSession() domain.SessionID {
	sid := domain.NewSessionID()
	r.mu.Lock()
	r.minted[sid] = r.clock.Now()
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session minted")
	return sid
}

// Known reports whether sid was minted here or has live room state.
func (r *Registry) Known(sid domain.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.sessions[sid]; ok {
		return true
	}
	_, ok := r.minted[sid]
	return ok
}

// Resolve maps missing or unknown ids onto the default session.
func (r *Registry) Resolve(sid domain.SessionID) domain.SessionID {
	if sid == "" || sid.IsDefault() {
		return domain.DefaultSession
	}
	if r.Known(sid) {
		return sid
	}
	return domain.DefaultSession
}

func (r *Registry) Connect(ms core.MemberSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[ms.ID()] = &connEntry{session: ms}
	log.Debug().Str("module", "app.registry").Str("cid", string(ms.ID())).Msg("connection registered")
}

// LeaveResult describes a membership that just ended.
type LeaveResult struct {
	Session domain.SessionID
	Member  core.MemberSession
	Emptied bool
}

// Disconnect drops the connection and its membership.
func (r *Registry) Disconnect(cid core.ConnID) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, left := r.leaveLocked(cid)
	delete(r.conns, cid)
	log.Debug().Str("module", "app.registry").Str("cid", string(cid)).Msg("connection unregistered")
	return res, left
}

// JoinResult reports what Join changed.
type JoinResult struct {
	Session  domain.SessionID
	Previous LeaveResult
	Moved    bool
	Added    bool
}

// Join puts cid into the room of sid. Joining the room the connection is
// already in only refreshes its meta. Joining a different room leaves the
// current one first.
func (r *Registry) Join(cid core.ConnID, sid domain.SessionID, meta *domain.Member) (JoinResult, error) {
	if sid == "" {
		sid = domain.DefaultSession
	}
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	ce, ok := r.conns[cid]
	if !ok {
		return JoinResult{}, ErrUnknownConn
	}
	res := JoinResult{Session: sid}
	if ce.joined && ce.sid != sid {
		res.Previous, res.Moved = r.leaveLocked(cid)
	}

	if meta != nil {
		ce.session = ce.session.UpdateMeta(meta)
	}
	e := r.entryLocked(sid)
	res.Added = e.room.AddMember(ce.session)
	ce.sid = sid
	ce.joined = true
	if _, ok := r.minted[sid]; ok {
		r.minted[sid] = now
	}

	e.mu.Lock()
	e.lastActive = now
	for camID, owner := range e.cameras {
		if owner == cid {
			delete(e.cameras, camID)
		}
	}
	if m := ce.session.Meta(); m.IsCamera() {
		camID := m.CameraID
		if camID == "" {
			camID = string(cid)
		}
		e.cameras[camID] = cid
	}
	e.mu.Unlock()

	if res.Added {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("cid", string(cid)).Int("members", e.room.MemberCount()).Msg("joined session")
	}
	return res, nil
}

func (r *Registry) Leave(cid core.ConnID) (LeaveResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(cid)
}

func (r *Registry) leaveLocked(cid core.ConnID) (LeaveResult, bool) {
	ce, ok := r.conns[cid]
	if !ok || !ce.joined {
		return LeaveResult{}, false
	}
	sid := ce.sid
	ce.joined = false
	ce.sid = ""

	res := LeaveResult{Session: sid, Member: ce.session}
	e, ok := r.sessions[sid]
	if !ok {
		return res, true
	}
	e.room.RemoveMember(cid)

	e.mu.Lock()
	for camID, owner := range e.cameras {
		if owner == cid {
			delete(e.cameras, camID)
		}
	}
	e.lastActive = r.clock.Now()
	if e.room.MemberCount() == 0 {
		e.dead = true
		res.Emptied = true
	}
	e.mu.Unlock()

	if res.Emptied {
		// Room and cache go away; a minted id stays valid until reaped.
		delete(r.sessions, sid)
		if _, ok := r.minted[sid]; ok {
			r.minted[sid] = r.clock.Now()
		}
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session emptied, state released")
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("cid", string(cid)).Msg("left session")
	return res, true
}

func (r *Registry) entryLocked(sid domain.SessionID) *sessionEntry {
	if e, ok := r.sessions[sid]; ok {
		return e
	}
	e := &sessionEntry{
		sid:        sid,
		room:       core.NewRoomService(sid),
		lastActive: r.clock.Now(),
		cameras:    make(map[string]core.ConnID),
	}
	r.sessions[sid] = e
	return e
}

// withEntry runs fn on the live entry for sid, creating it if needed.
func (r *Registry) withEntry(sid domain.SessionID, fn func(e *sessionEntry)) {
	for {
		r.mu.RLock()
		e, ok := r.sessions[sid]
		r.mu.RUnlock()
		if !ok {
			r.mu.Lock()
			e = r.entryLocked(sid)
			r.mu.Unlock()
		}

		e.mu.Lock()
		if e.dead {
			// Released between lookup and lock; retry on a fresh entry.
			e.mu.Unlock()
			continue
		}
		fn(e)
		e.mu.Unlock()
		return
	}
}

// RecordFrame stores img as the session's last frame. Last write wins.
func (r *Registry) RecordFrame(sid domain.SessionID, img image.Image, now time.Time) {
	r.withEntry(sid, func(e *sessionEntry) {
		e.lastFrame = img
		e.lastFrameAt = now
		e.lastActive = now
	})
}

// ShouldForward is the single rate-limiting decision for raw-frame relay.
// It returns true, and records now, iff more than the throttle interval
// has passed since the last forwarded frame.
func (r *Registry) ShouldForward(sid domain.SessionID, now time.Time) bool {
	forward := false
	r.withEntry(sid, func(e *sessionEntry) {
		e.lastActive = now
		if r.throttle <= 0 || e.lastForward.IsZero() || now.Sub(e.lastForward) > r.throttle {
			e.lastForward = now
			forward = true
		}
	})
	return forward
}

// Snapshot returns the cached frame of sid re-encoded as JPEG.
func (r *Registry) Snapshot(sid domain.SessionID, quality int) ([]byte, bool) {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	img := e.lastFrame
	e.mu.Unlock()
	if img == nil {
		return nil, false
	}
	blob, err := media.EncodeJPEG(img, quality)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Str("sid", string(sid)).Msg("snapshot encode")
		return nil, false
	}
	return blob, true
}

func (r *Registry) Room(sid domain.SessionID) (core.RoomService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.room, true
}

// SessionOf returns the session cid has joined.
func (r *Registry) SessionOf(cid core.ConnID) (domain.SessionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ce, ok := r.conns[cid]
	if !ok || !ce.joined {
		return "", false
	}
	return ce.sid, true
}

func (r *Registry) Member(cid core.ConnID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ce, ok := r.conns[cid]
	if !ok {
		return nil, false
	}
	return ce.session, true
}

// ConnsExcept lists every registered connection but cid.
func (r *Registry) ConnsExcept(cid core.ConnID) []core.MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.MemberSession, 0, len(r.conns))
	for id, ce := range r.conns {
		if id == cid {
			continue
		}
		out = append(out, ce.session)
	}
	return out
}

type SessionInfo struct {
	ID         domain.SessionID `json:"id"`
	Members    int              `json:"members"`
	Cameras    []string         `json:"cameras"`
	HasViewer  bool             `json:"has_viewer"`
	HasFrame   bool             `json:"has_frame"`
	LastActive time.Time        `json:"last_active"`
}

func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	entries := make([]*sessionEntry, 0, len(r.sessions))
	for _, e := range r.sessions {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	out := make([]SessionInfo, 0, len(entries))
	for _, e := range entries {
		info := SessionInfo{ID: e.sid, Members: e.room.MemberCount()}
		for _, m := range e.room.MembersSnapshot() {
			if m.Role == domain.RoleViewer {
				info.HasViewer = true
			}
		}
		e.mu.Lock()
		info.HasFrame = e.lastFrame != nil
		info.LastActive = e.lastActive
		info.Cameras = make([]string, 0, len(e.cameras))
		for camID := range e.cameras {
			info.Cameras = append(info.Cameras, camID)
		}
		e.mu.Unlock()
		sort.Strings(info.Cameras)
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ConnCount is the number of registered connections, joined or not.
func (r *Registry) ConnCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Reap releases sessions that have had no members and no activity for ttl,
// and forgets minted ids without room state that nobody joined or left
// within ttl.
func (r *Registry) Reap(now time.Time, ttl time.Duration) []domain.SessionID {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var reaped []domain.SessionID
	for sid, e := range r.sessions {
		if e.room.MemberCount() > 0 {
			continue
		}
		e.mu.Lock()
		idle := now.Sub(e.lastActive) > ttl
		if idle {
			e.dead = true
		}
		e.mu.Unlock()
		if idle {
			delete(r.sessions, sid)
			delete(r.minted, sid)
			reaped = append(reaped, sid)
		}
	}
	for sid, at := range r.minted {
		if _, live := r.sessions[sid]; live {
			continue
		}
		if now.Sub(at) > ttl {
			delete(r.minted, sid)
			reaped = append(reaped, sid)
		}
	}
	if len(reaped) > 0 {
		log.Info().Str("module", "app.registry").Int("count", len(reaped)).Msg("reaped idle sessions")
	}
	return reaped
}
