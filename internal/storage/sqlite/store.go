// Package sqlite provides a SQLite-backed session store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/dkeye/CineMatch/internal/domain"
	"github.com/dkeye/CineMatch/internal/storage"
	"github.com/dkeye/CineMatch/internal/storage/sqlite/migrations"
)

// Store persists sessions in SQLite. Appends are INSERT OR IGNORE against
// primary keys, so duplicates are rejected by the engine itself.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite session store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) CreateSession(ctx context.Context, sess domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (code, host_id, host_name, filter_tag, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(sess.Code),
		string(sess.Host.ID),
		sess.Host.Name,
		sess.FilterTag,
		toMillis(sess.CreatedAt),
		toMillis(sess.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}
	for i, p := range sess.Participants {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_participants (session_code, participant_id, display_name, position)
			 VALUES (?, ?, ?, ?)`,
			string(sess.Code), string(p.ID), p.Name, i,
		); err != nil {
			return fmt.Errorf("create session participant: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, code domain.JoinCode) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}
	sess := domain.Session{Code: code}
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT host_id, host_name, filter_tag, created_at, updated_at
		   FROM sessions
		  WHERE code = ?`,
		string(code),
	).Scan(&sess.Host.ID, &sess.Host.Name, &sess.FilterTag, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Session{}, domain.ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)

	if sess.Participants, err = s.participants(ctx, code); err != nil {
		return domain.Session{}, err
	}
	if sess.Likes, err = s.likes(ctx, code); err != nil {
		return domain.Session{}, err
	}
	if sess.Matches, err = s.matches(ctx, code); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func (s *Store) participants(ctx context.Context, code domain.JoinCode) ([]domain.Participant, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT participant_id, display_name
		   FROM session_participants
		  WHERE session_code = ?
		  ORDER BY position ASC`,
		string(code),
	)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := []domain.Participant{}
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}

func (s *Store) likes(ctx context.Context, code domain.JoinCode) ([]domain.Like, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT candidate_id, participant_id
		   FROM session_likes
		  WHERE session_code = ?
		  ORDER BY position ASC`,
		string(code),
	)
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	defer rows.Close()

	out := []domain.Like{}
	for rows.Next() {
		var l domain.Like
		if err := rows.Scan(&l.CandidateID, &l.ParticipantID); err != nil {
			return nil, fmt.Errorf("list likes: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	return out, nil
}

func (s *Store) matches(ctx context.Context, code domain.JoinCode) ([]domain.Match, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT candidate_id, title, artwork_ref
		   FROM session_matches
		  WHERE session_code = ?
		  ORDER BY position ASC`,
		string(code),
	)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	out := []domain.Match{}
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.CandidateID, &m.Title, &m.ArtworkRef); err != nil {
			return nil, fmt.Errorf("list matches: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	return out, nil
}

func (s *Store) AddParticipant(ctx context.Context, code domain.JoinCode, p domain.Participant) (domain.Session, bool, error) {
	return s.appendRow(ctx, code, "add participant",
		`INSERT OR IGNORE INTO session_participants (session_code, participant_id, display_name, position)
		 SELECT ?, ?, ?, COALESCE(MAX(position), -1) + 1
		   FROM session_participants
		  WHERE session_code = ?`,
		string(code), string(p.ID), p.Name, string(code),
	)
}

func (s *Store) RecordLike(ctx context.Context, code domain.JoinCode, like domain.Like) (domain.Session, bool, error) {
	return s.appendRow(ctx, code, "record like",
		`INSERT OR IGNORE INTO session_likes (session_code, candidate_id, participant_id, position)
		 SELECT ?, ?, ?, COALESCE(MAX(position), -1) + 1
		   FROM session_likes
		  WHERE session_code = ?`,
		string(code), string(like.CandidateID), string(like.ParticipantID), string(code),
	)
}

func (s *Store) RecordMatch(ctx context.Context, code domain.JoinCode, match domain.Match) (domain.Session, bool, error) {
	return s.appendRow(ctx, code, "record match",
		`INSERT OR IGNORE INTO session_matches (session_code, candidate_id, title, artwork_ref, position)
		 SELECT ?, ?, ?, ?, COALESCE(MAX(position), -1) + 1
		   FROM session_matches
		  WHERE session_code = ?`,
		string(code), string(match.CandidateID), match.Title, match.ArtworkRef, string(code),
	)
}

// appendRow touches the session row first so the transaction holds the write
// lock and a missing session is detected, then runs the conditional insert.
// A no-op insert rolls back so updated_at only moves on real changes.
func (s *Store) appendRow(ctx context.Context, code domain.JoinCode, op, insert string, args ...any) (domain.Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, false, err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("begin %s: %w", op, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE code = ?`,
		toMillis(s.now()), string(code),
	)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.Session{}, false, fmt.Errorf("%s: %w", op, err)
	} else if n == 0 {
		return domain.Session{}, false, domain.ErrNotFound
	}

	res, err = tx.ExecContext(ctx, insert, args...)
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Session{}, false, fmt.Errorf("%s: %w", op, err)
	}
	applied := n > 0
	if applied {
		if err := tx.Commit(); err != nil {
			return domain.Session{}, false, fmt.Errorf("commit %s: %w", op, err)
		}
	} else {
		_ = tx.Rollback()
	}

	sess, err := s.GetSession(ctx, code)
	if err != nil {
		return domain.Session{}, false, err
	}
	return sess, applied, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "sessions.code")
}

var _ storage.SessionStore = (*Store)(nil)
