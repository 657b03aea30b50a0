package app

import "github.com/dkeye/CineMatch/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	CloseConnection
)

// Policy decides what happens to a member whose send buffer is full.
type Policy interface {
	OnBackPressure(group core.GroupService, cid core.ConnID) BackpressureAction
}

// SimplePolicy closes slow consumers; they reconnect and rejoin.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.GroupService, core.ConnID) BackpressureAction {
	return CloseConnection
}
