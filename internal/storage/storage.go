// Package storage defines the durable session store contract shared by all
// backends.
package storage

import (
	"context"
	"errors"

	"github.com/dkeye/CineMatch/internal/domain"
)

// ErrAlreadyExists is returned by CreateSession when the join code is taken.
var ErrAlreadyExists = errors.New("join code already exists")

// SessionStore persists sessions. Every append is atomic and conditional:
// backends never store a duplicate participant, like or match, even when
// callers race from different processes. A false applied/added result means
// the entry was already present and nothing changed.
//
// Lookups and updates of a missing session return domain.ErrNotFound.
type SessionStore interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, code domain.JoinCode) (domain.Session, error)
	AddParticipant(ctx context.Context, code domain.JoinCode, p domain.Participant) (domain.Session, bool, error)
	RecordLike(ctx context.Context, code domain.JoinCode, like domain.Like) (domain.Session, bool, error)
	RecordMatch(ctx context.Context, code domain.JoinCode, match domain.Match) (domain.Session, bool, error)
	Close() error
}
