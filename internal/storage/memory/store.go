// Package memory keeps sessions in process memory.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/CineMatch/internal/domain"
	"github.com/dkeye/CineMatch/internal/storage"
)

// Store is a threadsafe in-memory session store. Returned sessions are
// copies; callers may modify them freely.
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.JoinCode]*domain.Session
	now      func() time.Time
}

func New() *Store {
	return &Store{
		sessions: make(map[domain.JoinCode]*domain.Session),
		now:      time.Now,
	}
}

func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.Code]; ok {
		return storage.ErrAlreadyExists
	}
	c := sess.Clone()
	s.sessions[sess.Code] = &c
	return nil
}

func (s *Store) GetSession(ctx context.Context, code domain.JoinCode) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[code]
	if !ok {
		return domain.Session{}, domain.ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *Store) AddParticipant(ctx context.Context, code domain.JoinCode, p domain.Participant) (domain.Session, bool, error) {
	return s.update(ctx, code, func(sess *domain.Session) bool {
		if sess.HasParticipant(p.ID) {
			return false
		}
		sess.Participants = append(sess.Participants, p)
		return true
	})
}

func (s *Store) RecordLike(ctx context.Context, code domain.JoinCode, like domain.Like) (domain.Session, bool, error) {
	return s.update(ctx, code, func(sess *domain.Session) bool {
		if sess.HasLike(like.CandidateID, like.ParticipantID) {
			return false
		}
		sess.Likes = append(sess.Likes, like)
		return true
	})
}

func (s *Store) RecordMatch(ctx context.Context, code domain.JoinCode, match domain.Match) (domain.Session, bool, error) {
	return s.update(ctx, code, func(sess *domain.Session) bool {
		if sess.HasMatch(match.CandidateID) {
			return false
		}
		sess.Matches = append(sess.Matches, match)
		return true
	})
}

// update applies fn under the write lock; fn reports whether it changed sess.
func (s *Store) update(ctx context.Context, code domain.JoinCode, fn func(*domain.Session) bool) (domain.Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[code]
	if !ok {
		return domain.Session{}, false, domain.ErrNotFound
	}
	changed := fn(sess)
	if changed {
		sess.UpdatedAt = s.now().UTC()
	}
	return sess.Clone(), changed, nil
}

func (s *Store) Close() error { return nil }

var _ storage.SessionStore = (*Store)(nil)
