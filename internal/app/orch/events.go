package orch

import "github.com/dkeye/CineMatch/internal/domain"

// Server-to-group event types.
const (
	TypeSessionUpdated = "session_updated"
	TypeMatchUpdate    = "match_update"
)

type SessionUpdatedEvent struct {
	Type         string               `json:"type"`
	JoinCode     domain.JoinCode      `json:"joinCode"`
	Participants []domain.Participant `json:"participants"`
	// Online lists the participants with an open channel in this group.
	Online  []domain.Participant `json:"online"`
	Matches []domain.Match       `json:"matches"`
}

type MatchUpdateEvent struct {
	Type     string          `json:"type"`
	JoinCode domain.JoinCode `json:"joinCode"`
	Matches  []domain.Match  `json:"matches"`
}

func sessionUpdated(s domain.Session, online []domain.Participant) SessionUpdatedEvent {
	s = s.Clone()
	if online == nil {
		online = []domain.Participant{}
	}
	return SessionUpdatedEvent{
		Type:         TypeSessionUpdated,
		JoinCode:     s.Code,
		Participants: s.Participants,
		Online:       online,
		Matches:      s.Matches,
	}
}

func matchUpdate(s domain.Session) MatchUpdateEvent {
	s = s.Clone()
	return MatchUpdateEvent{Type: TypeMatchUpdate, JoinCode: s.Code, Matches: s.Matches}
}
