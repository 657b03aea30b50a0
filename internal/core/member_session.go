package core

import "github.com/dkeye/CineMatch/internal/domain"

// MemberSession binds the authenticated participant of a connection to its
// transport endpoint. This is what a group stores and fans out to.
type MemberSession interface {
	Identity() domain.Participant
	Signal() SignalConnection
}

type memberSession struct {
	identity domain.Participant
	signal   SignalConnection
}

// NewMemberSession pairs an identity with its connection. The identity is
// fixed for the lifetime of the connection.
func NewMemberSession(identity domain.Participant, signal SignalConnection) MemberSession {
	return &memberSession{identity: identity, signal: signal}
}

func (m *memberSession) Identity() domain.Participant { return m.identity }
func (m *memberSession) Signal() SignalConnection     { return m.signal }
