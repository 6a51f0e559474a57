package core

import (
	"errors"

	"github.com/dkeye/Camlink/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// ConnID identifies one transport-level client for its lifetime.
type ConnID string

// Frame is a raw binary payload (an encoded camera frame).
type Frame []byte

// Message is one outbound unit. Binary messages carry frames verbatim,
// text messages carry JSON envelopes.
type Message struct {
	Binary bool
	Data   []byte
}

func TextMessage(data []byte) Message { return Message{Data: data} }

func BinaryMessage(f Frame) Message { return Message{Binary: true, Data: f} }

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Message) error
	Close()
}

// MemberSession binds domain.Member and its transport endpoint.
// This is what a room stores and fans out to.
type MemberSession interface {
	ID() ConnID
	Meta() *domain.Member
	Signal() SignalConnection
	UpdateMeta(*domain.Member) MemberSession
}

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       ConnID      `json:"id"`
	Role     domain.Role `json:"role"`
	CameraID string      `json:"camera_id,omitempty"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Session() domain.SessionID
	MemberCount() int
	MembersSnapshot() []MemberDTO
	Has(cid ConnID) bool

	AddMember(ms MemberSession) bool
	RemoveMember(cid ConnID) (MemberSession, bool)
	// Broadcast delivers msg to every member except from. An empty from
	// delivers to everyone.
	Broadcast(from ConnID, msg Message) PublishResult
}
