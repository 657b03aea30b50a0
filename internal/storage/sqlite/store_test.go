package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dkeye/CineMatch/internal/domain"
	"github.com/dkeye/CineMatch/internal/storage"
	"github.com/dkeye/CineMatch/internal/storage/storagetest"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "cinematch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestStoreConformance(t *testing.T) {
	t.Parallel()

	storagetest.Run(t, func(t *testing.T) storage.SessionStore {
		return openTempStore(t)
	})
}

func TestReopenKeepsSessionsAndMigrations(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cinematch.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	host := domain.Participant{ID: "h", Name: "Host"}
	sess := domain.NewSession("AB1CDE", host, "", time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC))
	if err := store.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, _, err := store.RecordMatch(context.Background(), "AB1CDE", domain.Match{CandidateID: "42", Title: "Heat"}); err != nil {
		t.Fatalf("record match: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.GetSession(context.Background(), "AB1CDE")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(got.Matches) != 1 || got.Matches[0].Title != "Heat" {
		t.Fatalf("matches = %+v, want one Heat match", got.Matches)
	}
}

func TestNoOpAppendKeepsUpdatedAt(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	created := time.Date(2026, time.October, 15, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return created.Add(time.Hour) }
	host := domain.Participant{ID: "h", Name: "Host"}
	if err := store.CreateSession(context.Background(), domain.NewSession("AB1CDE", host, "", created)); err != nil {
		t.Fatalf("create session: %v", err)
	}

	got, added, err := store.AddParticipant(context.Background(), "AB1CDE", host)
	if err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if added {
		t.Fatal("host re-add must be a no-op")
	}
	if !got.UpdatedAt.Equal(created) {
		t.Fatalf("updated_at = %v, want %v", got.UpdatedAt, created)
	}
}

func TestExtractUp(t *testing.T) {
	t.Parallel()

	got := extractUp("-- +migrate Up\nCREATE TABLE a (x);\n-- +migrate Down\nDROP TABLE a;\n")
	if got != "\nCREATE TABLE a (x);\n" {
		t.Fatalf("up = %q", got)
	}
}
