package core

import (
	"sync"
	"testing"

	"github.com/dkeye/CineMatch/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []Frame
	full   bool
	closed bool
}

func (f *fakeConn) TrySend(fr Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	if f.full {
		return ErrBackpressure
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

var (
	ann = domain.Participant{ID: "u-ann", Name: "Ann"}
	bob = domain.Participant{ID: "u-bob", Name: "Bob"}
)

func TestGroupBroadcastIncludesEveryMember(t *testing.T) {
	t.Parallel()

	g := NewGroupService("ABCDEF")
	a, b := &fakeConn{}, &fakeConn{}
	g.AddMember("c1", NewMemberSession(ann, a))
	g.AddMember("c2", NewMemberSession(bob, b))

	res := g.Broadcast(Frame(`{"type":"x"}`))
	if res.SentTo != 2 {
		t.Fatalf("sent to = %d, want 2", res.SentTo)
	}
	if len(res.Dropped) != 0 {
		t.Fatalf("dropped = %v, want none", res.Dropped)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("frames = (%d, %d), want (1, 1)", a.count(), b.count())
	}
}

func TestGroupBroadcastReportsBackpressure(t *testing.T) {
	t.Parallel()

	g := NewGroupService("ABCDEF")
	g.AddMember("ok", NewMemberSession(ann, &fakeConn{}))
	g.AddMember("slow", NewMemberSession(bob, &fakeConn{full: true}))

	res := g.Broadcast(Frame("x"))
	if res.SentTo != 1 {
		t.Fatalf("sent to = %d, want 1", res.SentTo)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != "slow" {
		t.Fatalf("dropped = %v, want [slow]", res.Dropped)
	}
}

func TestGroupMembersSnapshotDedupesIdentity(t *testing.T) {
	t.Parallel()

	g := NewGroupService("ABCDEF")
	g.AddMember("c1", NewMemberSession(ann, &fakeConn{}))
	g.AddMember("c2", NewMemberSession(ann, &fakeConn{}))
	g.AddMember("c3", NewMemberSession(bob, &fakeConn{}))

	if got := g.MemberCount(); got != 3 {
		t.Fatalf("member count = %d, want 3", got)
	}
	if got := len(g.MembersSnapshot()); got != 2 {
		t.Fatalf("snapshot = %d participants, want 2", got)
	}

	g.RemoveMember("c1")
	g.RemoveMember("missing")
	if got := g.MemberCount(); got != 2 {
		t.Fatalf("member count = %d, want 2", got)
	}
}

func TestGroupManager(t *testing.T) {
	t.Parallel()

	gm := NewGroupManager()
	if _, ok := gm.Get("ABCDEF"); ok {
		t.Fatalf("get on empty manager found a group")
	}
	g := gm.GetOrCreate("ABCDEF")
	if again := gm.GetOrCreate("ABCDEF"); again != g {
		t.Fatalf("GetOrCreate returned a different group for the same code")
	}

	g.AddMember("c1", NewMemberSession(ann, &fakeConn{}))
	if gm.DropIfEmpty("ABCDEF") {
		t.Fatalf("dropped a group with members")
	}
	infos := gm.List()
	if len(infos) != 1 || infos[0].MemberCount != 1 {
		t.Fatalf("list = %+v, want one group with one member", infos)
	}

	g.RemoveMember("c1")
	if !gm.DropIfEmpty("ABCDEF") {
		t.Fatalf("empty group not dropped")
	}
	if _, ok := gm.Get("ABCDEF"); ok {
		t.Fatalf("dropped group still listed")
	}
}
