package core

import "github.com/dkeye/CineMatch/internal/domain"

// PublishResult reports delivery stats and backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}

// GroupService is the broadcast group of one session.
// It owns the membership set but never touches transport resources.
type GroupService interface {
	Code() domain.JoinCode
	MemberCount() int
	// MembersSnapshot lists the distinct participants currently connected.
	MembersSnapshot() []domain.Participant

	AddMember(cid ConnID, ms MemberSession)
	RemoveMember(cid ConnID)
	Broadcast(data Frame) PublishResult
}

type GroupInfo struct {
	Code        domain.JoinCode `json:"joinCode"`
	MemberCount int             `json:"connections"`
}

type GroupManager interface {
	GetOrCreate(code domain.JoinCode) GroupService
	Get(code domain.JoinCode) (GroupService, bool)
	List() []GroupInfo
	// DropIfEmpty forgets the group once its last member left.
	DropIfEmpty(code domain.JoinCode) bool
}
