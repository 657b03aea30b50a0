package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/core"
	"github.com/dkeye/CineMatch/internal/domain"
)

// ConnState is the lifecycle position of a channel connection once its
// handshake passed the gate.
type ConnState int

const (
	StateConnected ConnState = iota
	StateJoined
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	default:
		return "closed"
	}
}

type connEntry struct {
	Code    domain.JoinCode
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry tracks live connections and the session group each one joined.
// It is process-local and only serves fan-out, never authorization.
type Registry struct {
	mu    sync.RWMutex
	conns map[core.ConnID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[core.ConnID]*connEntry)}
}

// Bind records an authenticated connection that has not joined a session yet.
func (r *Registry) Bind(cid core.ConnID, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[cid] = &connEntry{Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("user", string(sess.Identity().ID)).Msg("bound connection")
}

func (r *Registry) Get(cid core.ConnID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[cid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) State(cid core.ConnID) ConnState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	switch {
	case !ok:
		return StateClosed
	case e.Code == "":
		return StateConnected
	default:
		return StateJoined
	}
}

// CodeOf returns the session the connection joined.
func (r *Registry) CodeOf(cid core.ConnID) (domain.JoinCode, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[cid]
	if !ok || e.Code == "" {
		return "", nil, false
	}
	return e.Code, e.Session, true
}

func (r *Registry) SetCode(cid core.ConnID, code domain.JoinCode) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[cid]
	if !ok {
		return false
	}
	e.Code = code
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Str("code", code.String()).Msg("joined session")
	return true
}

func (r *Registry) ClearCode(cid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[cid]; ok {
		e.Code = ""
	}
}

func (r *Registry) Unbind(cid core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, cid)
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("unbound connection")
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Cancel stops the connection's pumps; the adapter cleans up afterwards.
func (r *Registry) Cancel(cid core.ConnID) bool {
	r.mu.RLock()
	e, ok := r.conns[cid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("cid", string(cid)).Msg("canceled connection")
	return true
}
