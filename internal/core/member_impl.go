package core

import "github.com/dkeye/Camlink/internal/domain"

// memberSession implements MemberSession by pairing meta + transport.
type memberSession struct {
	id     ConnID
	meta   *domain.Member
	signal SignalConnection
}

func NewMemberSession(id ConnID, meta *domain.Member, signal SignalConnection) MemberSession {
	return &memberSession{id: id, meta: meta, signal: signal}
}

func (m *memberSession) ID() ConnID               { return m.id }
func (m *memberSession) Meta() *domain.Member     { return m.meta }
func (m *memberSession) Signal() SignalConnection { return m.signal }

// UpdateMeta returns a copy so rooms holding the old value never observe a
// half-updated member.
func (m *memberSession) UpdateMeta(meta *domain.Member) MemberSession {
	return &memberSession{id: m.id, meta: meta, signal: m.signal}
}
