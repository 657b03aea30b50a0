package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/app/orch"
	"github.com/dkeye/CineMatch/internal/core"
	"github.com/dkeye/CineMatch/internal/domain"
)

type joinSessionPayload struct {
	Type     string `json:"type"`
	JoinCode string `json:"joinCode"`
}

type likePayload struct {
	Type        string             `json:"type"`
	JoinCode    string             `json:"joinCode"`
	CandidateID domain.LooseString `json:"candidateId"`
	Title       string             `json:"title"`
	ArtworkRef  string             `json:"artworkRef"`
}

// swipePayload is the like shape older clients send.
type swipePayload struct {
	Type       string             `json:"type"`
	JoinCode   string             `json:"joinCode"`
	MovieID    domain.LooseString `json:"movieId"`
	MovieTitle string             `json:"movieTitle"`
	PosterPath string             `json:"posterPath"`
}

func (ctl *SignalWSController) handleJoinSession(ctx context.Context, cid core.ConnID, conn *wsSignalConn, data []byte) {
	var p joinSessionPayload
	if err := json.Unmarshal(data, &p); err != nil || p.JoinCode == "" {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("bad join_session payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	if _, err := ctl.Orch.JoinSession(ctx, cid, p.JoinCode); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Str("code", p.JoinCode).Msg("join_session rejected")
		ctl.sendError(conn, reason(err))
	}
}

func (ctl *SignalWSController) handleLike(ctx context.Context, cid core.ConnID, conn *wsSignalConn, data []byte) {
	var p likePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("bad like payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.like(ctx, cid, conn, p.JoinCode, string(p.CandidateID), p.Title, p.ArtworkRef)
}

func (ctl *SignalWSController) handleSwipe(ctx context.Context, cid core.ConnID, conn *wsSignalConn, data []byte) {
	var p swipePayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("bad send_swipe payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	ctl.like(ctx, cid, conn, p.JoinCode, string(p.MovieID), p.MovieTitle, p.PosterPath)
}

func (ctl *SignalWSController) like(ctx context.Context, cid core.ConnID, conn *wsSignalConn, code, candidateID, title, artworkRef string) {
	if code == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	candidate, err := domain.NewCandidate(candidateID, title, artworkRef)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Msg("bad like candidate")
		ctl.sendError(conn, "bad_payload")
		return
	}
	ms, ok := ctl.Orch.Registry.Get(cid)
	if !ok {
		return
	}
	if !ctl.Limiter.Allow(ms.Identity().ID) {
		log.Warn().Str("module", "signal").Str("cid", string(cid)).Str("user", string(ms.Identity().ID)).Msg("like rate limited")
		ctl.sendError(conn, "rate_limited")
		return
	}

	out, err := ctl.Orch.Like(ctx, cid, code, candidate)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("cid", string(cid)).Str("code", code).Msg("like rejected")
		ctl.sendError(conn, reason(err))
		return
	}
	log.Debug().Str("module", "signal").Str("cid", string(cid)).Str("candidate", string(candidate.ID)).
		Bool("applied", out.LikeApplied).Bool("matched", out.Matched).Msg("like handled")
}

// reason maps a handler error to the short code sent back to the client.
func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "bad_payload"
	case errors.Is(err, domain.ErrNotFound):
		return "session_not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "not_a_participant"
	case errors.Is(err, orch.ErrNotJoined):
		return "not_joined"
	default:
		return "internal"
	}
}
