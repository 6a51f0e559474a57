package core

import (
	"sync"

	"github.com/dkeye/Camlink/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	sid   domain.SessionID
	mu    sync.RWMutex
	byCID map[ConnID]MemberSession
}

func NewRoomService(sid domain.SessionID) RoomService {
	return &roomImpl{
		sid:   sid,
		byCID: make(map[ConnID]MemberSession),
	}
}

func (r *roomImpl) Session() domain.SessionID { return r.sid }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byCID)
}

func (r *roomImpl) Has(cid ConnID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byCID[cid]
	return ok
}

// AddMember reports whether ms was not already present. A repeated add
// refreshes the stored meta but never duplicates delivery.
func (r *roomImpl) AddMember(ms MemberSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.byCID[ms.ID()]
	r.byCID[ms.ID()] = ms
	if !existed {
		log.Debug().Str("module", "core.room").Str("sid", string(r.sid)).Str("cid", string(ms.ID())).Msg("member added")
	}
	return !existed
}

func (r *roomImpl) RemoveMember(cid ConnID) (MemberSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms, ok := r.byCID[cid]
	if !ok {
		return nil, false
	}
	delete(r.byCID, cid)
	log.Debug().Str("module", "core.room").Str("sid", string(r.sid)).Str("cid", string(cid)).Msg("member removed")
	return ms, true
}

func (r *roomImpl) Broadcast(from ConnID, msg Message) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := PublishResult{}
	for cid, m := range r.byCID {
		if from != "" && cid == from {
			continue
		}
		if err := m.Signal().TrySend(msg); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Trace().Str("module", "core.room").Str("sid", string(r.sid)).Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]MemberDTO, 0, len(r.byCID))
	for cid, ms := range r.byCID {
		meta := ms.Meta()
		dto := MemberDTO{ID: cid, Role: domain.RoleViewer}
		if meta != nil {
			dto.Role = meta.Role
			dto.CameraID = meta.CameraID
		}
		out = append(out, dto)
	}
	return out
}
