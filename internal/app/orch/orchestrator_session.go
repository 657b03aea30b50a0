package orch

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/app/sessions"
	"github.com/dkeye/CineMatch/internal/core"
	"github.com/dkeye/CineMatch/internal/domain"
)

// Connect registers a freshly authenticated connection.
func (o *Orchestrator) Connect(cid core.ConnID, ms core.MemberSession, cancel context.CancelFunc) {
	o.Registry.Bind(cid, ms, cancel)
}

// JoinSession admits the connection into the group of rawCode after the
// store confirms its identity is a participant. The service then tells the
// group through SessionUpdated.
func (o *Orchestrator) JoinSession(ctx context.Context, cid core.ConnID, rawCode string) (domain.Session, error) {
	ms, ok := o.Registry.Get(cid)
	if !ok {
		return domain.Session{}, ErrUnknownConn
	}
	return o.Sessions.Admit(ctx, rawCode, ms.Identity().ID, func(sess domain.Session) {
		o.enterGroup(cid, sess.Code, ms)
		log.Info().Str("module", "orch").Str("cid", string(cid)).Str("code", sess.Code.String()).Str("user", string(ms.Identity().ID)).Msg("joined session group")
	})
}

// Like applies a like from a joined connection. A new match reaches the
// group through MatchUpdated.
func (o *Orchestrator) Like(ctx context.Context, cid core.ConnID, rawCode string, candidate domain.Candidate) (sessions.LikeOutcome, error) {
	code, err := domain.ParseJoinCode(rawCode)
	if err != nil {
		return sessions.LikeOutcome{}, err
	}
	joined, ms, ok := o.Registry.CodeOf(cid)
	if !ok || joined != code {
		return sessions.LikeOutcome{}, ErrNotJoined
	}
	return o.Sessions.Like(ctx, code.String(), ms.Identity().ID, candidate)
}

// SessionUpdated pushes the session state, with the participants online
// right now, to the group of the session.
func (o *Orchestrator) SessionUpdated(sess domain.Session) {
	var online []domain.Participant
	if g, ok := o.Groups.Get(sess.Code); ok {
		online = g.MembersSnapshot()
	}
	o.Broadcast(sess.Code, sessionUpdated(sess, online))
}

// MatchUpdated pushes the match list to the group of the session.
func (o *Orchestrator) MatchUpdated(sess domain.Session) {
	o.Broadcast(sess.Code, matchUpdate(sess))
}

// OnDisconnect forgets the connection. The participant stays in the session.
func (o *Orchestrator) OnDisconnect(cid core.ConnID) {
	o.leaveGroup(cid)
	o.Registry.Unbind(cid)
}
