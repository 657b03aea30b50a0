// Package storagetest holds the behavior every storage.SessionStore backend
// must share.
package storagetest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/dkeye/CineMatch/internal/domain"
	"github.com/dkeye/CineMatch/internal/storage"
)

// Open returns an empty store. It is called once per subtest.
type Open func(t *testing.T) storage.SessionStore

// Run exercises store semantics against the backend returned by open.
func Run(t *testing.T, open Open) {
	t.Helper()

	t.Run("create get round trip", func(t *testing.T) { testCreateGet(t, open(t)) })
	t.Run("create duplicate code", func(t *testing.T) { testCreateDuplicate(t, open(t)) })
	t.Run("get missing", func(t *testing.T) { testGetMissing(t, open(t)) })
	t.Run("add participant idempotent", func(t *testing.T) { testAddParticipant(t, open(t)) })
	t.Run("record like idempotent", func(t *testing.T) { testRecordLike(t, open(t)) })
	t.Run("record match idempotent", func(t *testing.T) { testRecordMatch(t, open(t)) })
	t.Run("updates on missing session", func(t *testing.T) { testUpdatesMissing(t, open(t)) })
	t.Run("concurrent duplicate like applied once", func(t *testing.T) { testConcurrentLike(t, open(t)) })
}

var (
	host  = domain.Participant{ID: "host-1", Name: "Hana"}
	guest = domain.Participant{ID: "guest-1", Name: "Gus"}
)

func seed(t *testing.T, st storage.SessionStore, code domain.JoinCode) domain.Session {
	t.Helper()
	now := time.Date(2026, time.October, 15, 18, 30, 0, 0, time.UTC)
	sess := domain.NewSession(code, host, "28", now)
	if err := st.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

func testCreateGet(t *testing.T, st storage.SessionStore) {
	want := seed(t, st, "AB1CDE")

	got, err := st.GetSession(context.Background(), "AB1CDE")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Code != want.Code {
		t.Fatalf("code = %q, want %q", got.Code, want.Code)
	}
	if got.Host != want.Host {
		t.Fatalf("host = %+v, want %+v", got.Host, want.Host)
	}
	if len(got.Participants) != 1 || got.Participants[0] != host {
		t.Fatalf("participants = %+v, want [%+v]", got.Participants, host)
	}
	if got.FilterTag != "28" {
		t.Fatalf("filter tag = %q, want %q", got.FilterTag, "28")
	}
	if len(got.Likes) != 0 || len(got.Matches) != 0 {
		t.Fatalf("likes/matches = %d/%d, want 0/0", len(got.Likes), len(got.Matches))
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, want.CreatedAt)
	}
}

func testCreateDuplicate(t *testing.T, st storage.SessionStore) {
	seed(t, st, "AB1CDE")
	dup := domain.NewSession("AB1CDE", guest, "", time.Now())
	err := st.CreateSession(context.Background(), dup)
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func testGetMissing(t *testing.T, st storage.SessionStore) {
	_, err := st.GetSession(context.Background(), "ZZZZZZ")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get missing error = %v, want %v", err, domain.ErrNotFound)
	}
}

func testAddParticipant(t *testing.T, st storage.SessionStore) {
	ctx := context.Background()
	seed(t, st, "AB1CDE")

	sess, added, err := st.AddParticipant(ctx, "AB1CDE", guest)
	if err != nil {
		t.Fatalf("add participant: %v", err)
	}
	if !added {
		t.Fatal("expected first add to apply")
	}
	if len(sess.Participants) != 2 || sess.Participants[1] != guest {
		t.Fatalf("participants = %+v", sess.Participants)
	}

	sess, added, err = st.AddParticipant(ctx, "AB1CDE", guest)
	if err != nil {
		t.Fatalf("add participant again: %v", err)
	}
	if added {
		t.Fatal("expected second add to be a no-op")
	}
	if len(sess.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(sess.Participants))
	}

	_, added, err = st.AddParticipant(ctx, "AB1CDE", host)
	if err != nil {
		t.Fatalf("add host: %v", err)
	}
	if added {
		t.Fatal("host is already a participant")
	}
}

func testRecordLike(t *testing.T, st storage.SessionStore) {
	ctx := context.Background()
	seed(t, st, "AB1CDE")
	like := domain.Like{CandidateID: "42", ParticipantID: host.ID}

	sess, applied, err := st.RecordLike(ctx, "AB1CDE", like)
	if err != nil {
		t.Fatalf("record like: %v", err)
	}
	if !applied {
		t.Fatal("expected first like to apply")
	}
	if len(sess.Likes) != 1 || sess.Likes[0] != like {
		t.Fatalf("likes = %+v", sess.Likes)
	}

	sess, applied, err = st.RecordLike(ctx, "AB1CDE", like)
	if err != nil {
		t.Fatalf("record like again: %v", err)
	}
	if applied {
		t.Fatal("expected duplicate like to be a no-op")
	}
	if len(sess.Likes) != 1 {
		t.Fatalf("likes = %d, want 1", len(sess.Likes))
	}

	other := domain.Like{CandidateID: "7", ParticipantID: host.ID}
	sess, applied, err = st.RecordLike(ctx, "AB1CDE", other)
	if err != nil {
		t.Fatalf("record other like: %v", err)
	}
	if !applied || len(sess.Likes) != 2 {
		t.Fatalf("applied = %v, likes = %d, want true/2", applied, len(sess.Likes))
	}
}

func testRecordMatch(t *testing.T, st storage.SessionStore) {
	ctx := context.Background()
	seed(t, st, "AB1CDE")
	first := domain.Match{CandidateID: "42", Title: "Heat", ArtworkRef: "/heat.jpg"}
	second := domain.Match{CandidateID: "7", Title: "Alien"}

	if _, applied, err := st.RecordMatch(ctx, "AB1CDE", first); err != nil || !applied {
		t.Fatalf("record first match: applied=%v err=%v", applied, err)
	}
	if _, applied, err := st.RecordMatch(ctx, "AB1CDE", second); err != nil || !applied {
		t.Fatalf("record second match: applied=%v err=%v", applied, err)
	}
	retitled := domain.Match{CandidateID: "42", Title: "Heat (1995)"}
	sess, applied, err := st.RecordMatch(ctx, "AB1CDE", retitled)
	if err != nil {
		t.Fatalf("record duplicate match: %v", err)
	}
	if applied {
		t.Fatal("expected duplicate match to be a no-op")
	}
	if len(sess.Matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(sess.Matches))
	}
	if sess.Matches[0] != first || sess.Matches[1] != second {
		t.Fatalf("matches = %+v, want [%+v %+v]", sess.Matches, first, second)
	}
}

func testUpdatesMissing(t *testing.T, st storage.SessionStore) {
	ctx := context.Background()
	if _, _, err := st.AddParticipant(ctx, "ZZZZZZ", guest); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("add participant error = %v, want %v", err, domain.ErrNotFound)
	}
	if _, _, err := st.RecordLike(ctx, "ZZZZZZ", domain.Like{CandidateID: "1", ParticipantID: "x"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("record like error = %v, want %v", err, domain.ErrNotFound)
	}
	if _, _, err := st.RecordMatch(ctx, "ZZZZZZ", domain.Match{CandidateID: "1"}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("record match error = %v, want %v", err, domain.ErrNotFound)
	}
}

func testConcurrentLike(t *testing.T, st storage.SessionStore) {
	ctx := context.Background()
	seed(t, st, "AB1CDE")
	like := domain.Like{CandidateID: "42", ParticipantID: host.ID}

	var applied atomic.Int32
	var wg conc.WaitGroup
	for range 16 {
		wg.Go(func() {
			_, ok, err := st.RecordLike(ctx, "AB1CDE", like)
			if err != nil {
				t.Errorf("record like: %v", err)
				return
			}
			if ok {
				applied.Add(1)
			}
		})
	}
	wg.Wait()

	if got := applied.Load(); got != 1 {
		t.Fatalf("applied = %d, want 1", got)
	}
	sess, err := st.GetSession(ctx, "AB1CDE")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if len(sess.Likes) != 1 {
		t.Fatalf("likes = %d, want 1", len(sess.Likes))
	}
}
