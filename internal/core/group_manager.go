package core

import (
	"sync"

	"github.com/dkeye/CineMatch/internal/domain"
)

type groupManager struct {
	mu     sync.RWMutex
	groups map[domain.JoinCode]GroupService
}

func NewGroupManager() GroupManager {
	return &groupManager{groups: make(map[domain.JoinCode]GroupService)}
}

func (gm *groupManager) GetOrCreate(code domain.JoinCode) GroupService {
	gm.mu.RLock()
	g, ok := gm.groups[code]
	gm.mu.RUnlock()
	if ok {
		return g
	}

	gm.mu.Lock()
	defer gm.mu.Unlock()
	if g, ok = gm.groups[code]; !ok {
		g = NewGroupService(code)
		gm.groups[code] = g
	}
	return g
}

func (gm *groupManager) Get(code domain.JoinCode) (GroupService, bool) {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	g, ok := gm.groups[code]
	return g, ok
}

func (gm *groupManager) List() []GroupInfo {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	out := make([]GroupInfo, 0, len(gm.groups))
	for code, g := range gm.groups {
		out = append(out, GroupInfo{Code: code, MemberCount: g.MemberCount()})
	}
	return out
}

func (gm *groupManager) DropIfEmpty(code domain.JoinCode) bool {
	gm.mu.Lock()
	defer gm.mu.Unlock()
	g, ok := gm.groups[code]
	if !ok || g.MemberCount() > 0 {
		return false
	}
	delete(gm.groups, code)
	return true
}
