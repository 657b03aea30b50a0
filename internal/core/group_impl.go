package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/domain"
)

// groupImpl is a threadsafe in-memory broadcast group.
// It never closes adapter-owned resources.
type groupImpl struct {
	code    domain.JoinCode
	mu      sync.RWMutex
	members map[ConnID]MemberSession
}

func NewGroupService(code domain.JoinCode) GroupService {
	return &groupImpl{
		code:    code,
		members: make(map[ConnID]MemberSession),
	}
}

func (g *groupImpl) Code() domain.JoinCode { return g.code }

func (g *groupImpl) MemberCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

func (g *groupImpl) AddMember(cid ConnID, ms MemberSession) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[cid] = ms
	log.Info().Str("module", "core.group").Str("code", g.code.String()).Str("cid", string(cid)).Str("user", string(ms.Identity().ID)).Msg("member added")
}

func (g *groupImpl) RemoveMember(cid ConnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.members[cid]; !ok {
		return
	}
	delete(g.members, cid)
	log.Info().Str("module", "core.group").Str("code", g.code.String()).Str("cid", string(cid)).Msg("member removed")
}

// Broadcast delivers data to every member, the originator included.
func (g *groupImpl) Broadcast(data Frame) PublishResult {
	g.mu.RLock()
	defer g.mu.RUnlock()
	res := PublishResult{}
	for cid, m := range g.members {
		if err := m.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, cid)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.group").Str("code", g.code.String()).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (g *groupImpl) MembersSnapshot() []domain.Participant {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[domain.UserID]struct{}, len(g.members))
	out := make([]domain.Participant, 0, len(g.members))
	for _, ms := range g.members {
		p := ms.Identity()
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
