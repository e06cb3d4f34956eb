package app

import (
	"github.com/dkeye/Vote/internal/core"
	"github.com/dkeye/Vote/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a connection whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomCode, member core.MemberSession) BackpressureAction
}

// SimplePolicy disconnects slow members; a client that missed a state delta
// would otherwise render a stale room.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomCode, core.MemberSession) BackpressureAction {
	return KickMember
}
