// Package sessions is the authoritative entry point for session state. It
// owns join code generation and serializes every mutation per join code.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/CineMatch/internal/app"
	"github.com/dkeye/CineMatch/internal/domain"
	"github.com/dkeye/CineMatch/internal/storage"
)

const DefaultCodeAttempts = 16

type Options struct {
	// CodeAttempts bounds join code generation retries on collision.
	CodeAttempts int
}

// Notifier receives session snapshots while the session lock is still
// held, so snapshots of one join code reach it in the order they were stored.
type Notifier interface {
	SessionUpdated(domain.Session)
	MatchUpdated(domain.Session)
}

type Service struct {
	store    storage.SessionStore
	locks    *keyedMutex
	attempts int
	newCode  func() (domain.JoinCode, error)
	now      func() time.Time
	notifier Notifier
}

func NewService(store storage.SessionStore, opts Options) *Service {
	if opts.CodeAttempts <= 0 {
		opts.CodeAttempts = DefaultCodeAttempts
	}
	return &Service{
		store:    store,
		locks:    newKeyedMutex(),
		attempts: opts.CodeAttempts,
		newCode:  domain.NewJoinCode,
		now:      time.Now,
	}
}

// SetNotifier installs n. Call it before serving traffic.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// LikeOutcome describes what a like event changed.
type LikeOutcome struct {
	Session domain.Session
	// LikeApplied is false when the participant had already liked the candidate.
	LikeApplied bool
	// Matched is true only for the like that appended the match.
	Matched bool
}

// CreateSession stores a new session hosted by host. The unique constraint
// of the backend decides collisions; a taken code is regenerated.
func (s *Service) CreateSession(ctx context.Context, host domain.Participant, filterTag string) (domain.Session, error) {
	if host.ID == "" {
		return domain.Session{}, fmt.Errorf("%w: host id is required", domain.ErrValidation)
	}
	for attempt := 1; attempt <= s.attempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return domain.Session{}, err
		}
		sess := domain.NewSession(code, host, filterTag, s.now())
		err = s.store.CreateSession(ctx, sess)
		if errors.Is(err, storage.ErrAlreadyExists) {
			log.Debug().Str("module", "app.sessions").Str("code", code.String()).Int("attempt", attempt).Msg("join code collision")
			continue
		}
		if err != nil {
			return domain.Session{}, fmt.Errorf("create session: %w", err)
		}
		log.Info().Str("module", "app.sessions").Str("code", code.String()).Str("host", string(host.ID)).Msg("session created")
		return sess, nil
	}
	log.Error().Str("module", "app.sessions").Int("attempts", s.attempts).Msg("join code space exhausted, check session.code_attempts and storage")
	return domain.Session{}, domain.ErrCodeSpaceExhausted
}

// GetSessionByCode looks a session up case-insensitively.
func (s *Service) GetSessionByCode(ctx context.Context, rawCode string) (domain.Session, error) {
	code, err := domain.ParseJoinCode(rawCode)
	if err != nil {
		return domain.Session{}, err
	}
	return s.store.GetSession(ctx, code)
}

// FetchForParticipant returns the session only to its participants.
func (s *Service) FetchForParticipant(ctx context.Context, rawCode string, id domain.UserID) (domain.Session, error) {
	sess, err := s.GetSessionByCode(ctx, rawCode)
	if err != nil {
		return domain.Session{}, err
	}
	if !sess.HasParticipant(id) {
		return domain.Session{}, domain.ErrForbidden
	}
	return sess, nil
}

// AddParticipant appends p unless already present. added reports a change.
func (s *Service) AddParticipant(ctx context.Context, rawCode string, p domain.Participant) (domain.Session, bool, error) {
	code, err := domain.ParseJoinCode(rawCode)
	if err != nil {
		return domain.Session{}, false, err
	}
	if p.ID == "" {
		return domain.Session{}, false, fmt.Errorf("%w: participant id is required", domain.ErrValidation)
	}
	unlock := s.locks.Lock(code)
	defer unlock()
	sess, added, err := s.store.AddParticipant(ctx, code, p)
	if err != nil {
		return domain.Session{}, false, err
	}
	if added && s.notifier != nil {
		s.notifier.SessionUpdated(sess)
	}
	return sess, added, nil
}

// Admit confirms id is a participant, hands the session to enter and then
// announces it. All of it runs under the session lock.
func (s *Service) Admit(ctx context.Context, rawCode string, id domain.UserID, enter func(domain.Session)) (domain.Session, error) {
	code, err := domain.ParseJoinCode(rawCode)
	if err != nil {
		return domain.Session{}, err
	}
	unlock := s.locks.Lock(code)
	defer unlock()
	sess, err := s.store.GetSession(ctx, code)
	if err != nil {
		return domain.Session{}, err
	}
	if !sess.HasParticipant(id) {
		return domain.Session{}, domain.ErrForbidden
	}
	if enter != nil {
		enter(sess)
	}
	if s.notifier != nil {
		s.notifier.SessionUpdated(sess)
	}
	return sess, nil
}

// RecordLike stores one like; a repeated pair is reported as not applied.
func (s *Service) RecordLike(ctx context.Context, rawCode string, candidate domain.CandidateID, participant domain.UserID) (domain.Session, bool, error) {
	code, err := domain.ParseJoinCode(rawCode)
	if err != nil {
		return domain.Session{}, false, err
	}
	if candidate == "" || participant == "" {
		return domain.Session{}, false, fmt.Errorf("%w: candidate and participant are required", domain.ErrValidation)
	}
	unlock := s.locks.Lock(code)
	defer unlock()
	return s.store.RecordLike(ctx, code, domain.Like{CandidateID: candidate, ParticipantID: participant})
}

// RecordMatch appends match unless its candidate already matched.
func (s *Service) RecordMatch(ctx context.Context, rawCode string, match domain.Match) (domain.Session, bool, error) {
	code, err := domain.ParseJoinCode(rawCode)
	if err != nil {
		return domain.Session{}, false, err
	}
	if match.CandidateID == "" {
		return domain.Session{}, false, fmt.Errorf("%w: candidate is required", domain.ErrValidation)
	}
	unlock := s.locks.Lock(code)
	defer unlock()
	return s.store.RecordMatch(ctx, code, match)
}

// Like runs the whole like pipeline under the session lock: membership
// check, idempotent like, match evaluation against the participants stored
// right now, idempotent match. A repeated like still evaluates an unmatched
// candidate, which completes a match whose write failed earlier.
func (s *Service) Like(ctx context.Context, rawCode string, participant domain.UserID, candidate domain.Candidate) (LikeOutcome, error) {
	code, err := domain.ParseJoinCode(rawCode)
	if err != nil {
		return LikeOutcome{}, err
	}
	if participant == "" || candidate.ID == "" {
		return LikeOutcome{}, fmt.Errorf("%w: candidate and participant are required", domain.ErrValidation)
	}
	unlock := s.locks.Lock(code)
	defer unlock()

	sess, err := s.store.GetSession(ctx, code)
	if err != nil {
		return LikeOutcome{}, err
	}
	if !sess.HasParticipant(participant) {
		return LikeOutcome{}, domain.ErrForbidden
	}

	sess, applied, err := s.store.RecordLike(ctx, code, domain.Like{CandidateID: candidate.ID, ParticipantID: participant})
	if err != nil {
		return LikeOutcome{}, fmt.Errorf("record like: %w", err)
	}
	out := LikeOutcome{Session: sess, LikeApplied: applied}
	if sess.HasMatch(candidate.ID) || !app.EvaluateMatch(sess.ParticipantIDs(), sess.LikersOf(candidate.ID)) {
		return out, nil
	}
	if !applied {
		log.Warn().Str("module", "app.sessions").Str("code", code.String()).Str("candidate", string(candidate.ID)).Msg("completing unrecorded match")
	}

	sess, matched, err := s.store.RecordMatch(ctx, code, candidate.Match())
	if err != nil {
		return LikeOutcome{}, fmt.Errorf("record match: %w", err)
	}
	out.Session = sess
	out.Matched = matched
	if matched {
		log.Info().Str("module", "app.sessions").Str("code", code.String()).Str("candidate", string(candidate.ID)).Int("matches", len(sess.Matches)).Msg("match found")
		if s.notifier != nil {
			s.notifier.MatchUpdated(sess)
		}
	}
	return out, nil
}
