// Package orch ties the session service to the broadcast groups of live
// connections.
package orch

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/app"
	"github.com/dkeye/CineMatch/internal/app/sessions"
	"github.com/dkeye/CineMatch/internal/core"
	"github.com/dkeye/CineMatch/internal/domain"
)

var (
	ErrUnknownConn = errors.New("unknown connection")
	ErrNotJoined   = errors.New("connection has not joined this session")
)

type Orchestrator struct {
	Registry *app.Registry
	Groups   core.GroupManager
	Policy   app.Policy
	Sessions *sessions.Service

	// membership serializes group add/remove against DropIfEmpty.
	membership sync.Mutex
}

// New wires the orchestrator and installs it as the notifier of svc.
func New(reg *app.Registry, groups core.GroupManager, policy app.Policy, svc *sessions.Service) *Orchestrator {
	o := &Orchestrator{Registry: reg, Groups: groups, Policy: policy, Sessions: svc}
	if svc != nil {
		svc.SetNotifier(o)
	}
	return o
}

// Broadcast encodes v once and fans it out to the group of code. Slow
// consumers are handled by the Policy.
func (o *Orchestrator) Broadcast(code domain.JoinCode, v any) core.PublishResult {
	group, ok := o.Groups.Get(code)
	if !ok {
		return core.PublishResult{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Msg("broadcast marshal")
		return core.PublishResult{}
	}

	res := group.Broadcast(data)
	if o.Policy == nil {
		return res
	}
	for _, cid := range res.Dropped {
		switch o.Policy.OnBackPressure(group, cid) {
		case app.CloseConnection:
			log.Warn().Str("module", "orch").Str("cid", string(cid)).Str("code", code.String()).Msg("closing slow consumer")
			o.Kick(cid)
		case app.DropFrame, app.NoAction:
		}
	}
	return res
}

// Kick removes the connection from its group and stops its pumps.
func (o *Orchestrator) Kick(cid core.ConnID) {
	o.leaveGroup(cid)
	if ms, ok := o.Registry.Get(cid); ok {
		ms.Signal().Close()
	}
	o.Registry.Cancel(cid)
}

func (o *Orchestrator) leaveGroup(cid core.ConnID) {
	o.membership.Lock()
	defer o.membership.Unlock()
	code, _, ok := o.Registry.CodeOf(cid)
	if !ok {
		return
	}
	if g, ok := o.Groups.Get(code); ok {
		g.RemoveMember(cid)
	}
	o.Groups.DropIfEmpty(code)
	o.Registry.ClearCode(cid)
}

func (o *Orchestrator) enterGroup(cid core.ConnID, code domain.JoinCode, ms core.MemberSession) {
	o.membership.Lock()
	defer o.membership.Unlock()
	if prev, _, ok := o.Registry.CodeOf(cid); ok && prev != code {
		if g, ok := o.Groups.Get(prev); ok {
			g.RemoveMember(cid)
		}
		o.Groups.DropIfEmpty(prev)
		log.Info().Str("module", "orch").Str("cid", string(cid)).Str("from", prev.String()).Msg("left previous session group")
	}
	o.Groups.GetOrCreate(code).AddMember(cid, ms)
	o.Registry.SetCode(cid, code)
}
