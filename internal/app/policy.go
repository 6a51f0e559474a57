package app

import "github.com/dkeye/Camlink/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

type Policy interface {
	OnBackPressure(room core.RoomService, member core.MemberSession, msg core.Message) BackpressureAction
}

// SimplePolicy drops video for slow members; the next relay carries a newer
// frame anyway. A member that cannot drain its text queue is gone for
// practical purposes and gets kicked.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.RoomService, member core.MemberSession, msg core.Message) BackpressureAction {
	if msg.Binary {
		return DropFrame
	}
	return KickMember
}

// LenientPolicy never kicks.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(core.RoomService, core.MemberSession, core.Message) BackpressureAction {
	return MarkSlow
}
