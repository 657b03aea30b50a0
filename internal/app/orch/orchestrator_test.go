package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/CineMatch/internal/app"
	"github.com/dkeye/CineMatch/internal/app/sessions"
	"github.com/dkeye/CineMatch/internal/core"
	"github.com/dkeye/CineMatch/internal/domain"
	"github.com/dkeye/CineMatch/internal/storage/memory"
)

type recConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *recConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *recConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *recConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(f, &env)
		out = append(out, env.Type)
	}
	return out
}

func (c *recConn) last(t *testing.T, v any) {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		t.Fatalf("no frames received")
	}
	if err := json.Unmarshal(c.frames[len(c.frames)-1], v); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
}

type fixture struct {
	o    *Orchestrator
	code string
}

var (
	hostP  = domain.Participant{ID: "host", Name: "Hana"}
	guestP = domain.Participant{ID: "guest", Name: "Gus"}
	otherP = domain.Participant{ID: "other", Name: "Oz"}
)

func newFixture(t *testing.T) fixture {
	t.Helper()
	svc := sessions.NewService(memory.New(), sessions.Options{})
	o := New(app.NewRegistry(), core.NewGroupManager(), app.SimplePolicy{}, svc)
	sess, err := svc.CreateSession(context.Background(), hostP, "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, _, err := svc.AddParticipant(context.Background(), sess.Code.String(), guestP); err != nil {
		t.Fatalf("add guest: %v", err)
	}
	return fixture{o: o, code: sess.Code.String()}
}

func (f fixture) connect(cid core.ConnID, p domain.Participant) *recConn {
	c := &recConn{}
	f.o.Connect(cid, core.NewMemberSession(p, c), func() {})
	return c
}

func TestJoinSessionBroadcastsToGroup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	hc := f.connect("c-host", hostP)
	gc := f.connect("c-guest", guestP)

	if _, err := f.o.JoinSession(ctx, "c-host", f.code); err != nil {
		t.Fatalf("host join: %v", err)
	}
	if _, err := f.o.JoinSession(ctx, "c-guest", f.code); err != nil {
		t.Fatalf("guest join: %v", err)
	}

	if got := hc.types(); len(got) != 2 || got[1] != TypeSessionUpdated {
		t.Fatalf("host frames = %v, want two session_updated", got)
	}
	var ev SessionUpdatedEvent
	gc.last(t, &ev)
	if len(ev.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(ev.Participants))
	}
	if ev.Matches == nil {
		t.Fatalf("matches encoded as null, want []")
	}
	if got := f.o.Registry.State("c-guest"); got != app.StateJoined {
		t.Fatalf("state = %v, want %v", got, app.StateJoined)
	}
}

func TestJoinSessionRejectsNonParticipant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	oc := f.connect("c-other", otherP)

	_, err := f.o.JoinSession(context.Background(), "c-other", f.code)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("err = %v, want %v", err, domain.ErrForbidden)
	}
	if got := f.o.Registry.State("c-other"); got != app.StateConnected {
		t.Fatalf("state = %v, want %v", got, app.StateConnected)
	}
	if len(oc.types()) != 0 {
		t.Fatalf("rejected connection received frames")
	}

	if _, err := f.o.JoinSession(context.Background(), "nobody", f.code); !errors.Is(err, ErrUnknownConn) {
		t.Fatalf("err = %v, want %v", err, ErrUnknownConn)
	}
}

func TestJoinSessionMovesBetweenGroups(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	second, err := f.o.Sessions.CreateSession(ctx, hostP, "")
	if err != nil {
		t.Fatalf("create second session: %v", err)
	}
	f.connect("c-host", hostP)

	if _, err := f.o.JoinSession(ctx, "c-host", f.code); err != nil {
		t.Fatalf("join first: %v", err)
	}
	if _, err := f.o.JoinSession(ctx, "c-host", second.Code.String()); err != nil {
		t.Fatalf("join second: %v", err)
	}

	first, _ := domain.ParseJoinCode(f.code)
	if _, ok := f.o.Groups.Get(first); ok {
		t.Fatalf("first group still exists after its only member moved")
	}
	g, ok := f.o.Groups.Get(second.Code)
	if !ok || g.MemberCount() != 1 {
		t.Fatalf("second group missing or wrong size")
	}
}

func TestLikeRequiresJoin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.connect("c-host", hostP)
	c, _ := domain.NewCandidate("42", "Movie 42", "")

	_, err := f.o.Like(context.Background(), "c-host", f.code, c)
	if !errors.Is(err, ErrNotJoined) {
		t.Fatalf("err = %v, want %v", err, ErrNotJoined)
	}
}

func TestLikeBroadcastsMatchOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	hc := f.connect("c-host", hostP)
	gc := f.connect("c-guest", guestP)
	for _, cid := range []core.ConnID{"c-host", "c-guest"} {
		if _, err := f.o.JoinSession(ctx, cid, f.code); err != nil {
			t.Fatalf("join %s: %v", cid, err)
		}
	}
	c, _ := domain.NewCandidate("42", "Movie 42", "/p/42.jpg")

	out, err := f.o.Like(ctx, "c-guest", f.code, c)
	if err != nil || out.Matched {
		t.Fatalf("guest like = (%+v, %v), want no match", out, err)
	}
	out, err = f.o.Like(ctx, "c-host", f.code, c)
	if err != nil || !out.Matched {
		t.Fatalf("host like = (%+v, %v), want match", out, err)
	}
	if _, err := f.o.Like(ctx, "c-host", f.code, c); err != nil {
		t.Fatalf("repeat like: %v", err)
	}

	for name, conn := range map[string]*recConn{"host": hc, "guest": gc} {
		n := 0
		for _, typ := range conn.types() {
			if typ == TypeMatchUpdate {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("%s match_update frames = %d, want 1", name, n)
		}
		var ev MatchUpdateEvent
		conn.last(t, &ev)
		if len(ev.Matches) != 1 || ev.Matches[0].Title != "Movie 42" {
			t.Fatalf("%s matches = %+v, want Movie 42", name, ev.Matches)
		}
	}
}

func TestAddParticipantNotifiesGroup(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	hc := f.connect("c-host", hostP)
	if _, err := f.o.JoinSession(ctx, "c-host", f.code); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, added, err := f.o.Sessions.AddParticipant(ctx, f.code, otherP); err != nil || !added {
		t.Fatalf("add participant = (%v, %v)", added, err)
	}

	var ev SessionUpdatedEvent
	hc.last(t, &ev)
	if len(ev.Participants) != 3 {
		t.Fatalf("participants = %d, want 3", len(ev.Participants))
	}
	if len(ev.Online) != 1 || ev.Online[0] != hostP {
		t.Fatalf("online = %+v, want only host", ev.Online)
	}

	n := len(hc.types())
	if _, added, err := f.o.Sessions.AddParticipant(ctx, f.code, otherP); err != nil || added {
		t.Fatalf("repeat add = (%v, %v), want no change", added, err)
	}
	if got := len(hc.types()); got != n {
		t.Fatalf("frames after repeat add = %d, want %d", got, n)
	}
}

func TestSessionUpdatedListsOnlineParticipants(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	hc := f.connect("c-host", hostP)
	f.connect("c-guest", guestP)
	f.connect("c-host-2", hostP)
	for _, cid := range []core.ConnID{"c-host", "c-host-2", "c-guest"} {
		if _, err := f.o.JoinSession(ctx, cid, f.code); err != nil {
			t.Fatalf("join %s: %v", cid, err)
		}
	}

	var ev SessionUpdatedEvent
	hc.last(t, &ev)
	if len(ev.Online) != 2 {
		t.Fatalf("online = %+v, want host and guest once each", ev.Online)
	}

	f.o.OnDisconnect("c-guest")
	f.o.OnDisconnect("c-host-2")
	if _, err := f.o.JoinSession(ctx, "c-host", f.code); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	hc.last(t, &ev)
	if len(ev.Online) != 1 || ev.Online[0] != hostP {
		t.Fatalf("online = %+v, want only host", ev.Online)
	}
	if len(ev.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(ev.Participants))
	}
}

func TestSlowConsumerIsClosed(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.connect("c-host", hostP)
	gc := f.connect("c-guest", guestP)
	if _, err := f.o.JoinSession(ctx, "c-guest", f.code); err != nil {
		t.Fatalf("guest join: %v", err)
	}
	gc.mu.Lock()
	gc.full = true
	gc.mu.Unlock()

	if _, err := f.o.JoinSession(ctx, "c-host", f.code); err != nil {
		t.Fatalf("host join: %v", err)
	}
	gc.mu.Lock()
	closed := gc.closed
	gc.mu.Unlock()
	if !closed {
		t.Fatalf("slow consumer left open")
	}
	if _, _, ok := f.o.Registry.CodeOf("c-guest"); ok {
		t.Fatalf("slow consumer still in a group")
	}
}

func TestOnDisconnectKeepsParticipant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	f.connect("c-guest", guestP)
	if _, err := f.o.JoinSession(ctx, "c-guest", f.code); err != nil {
		t.Fatalf("join: %v", err)
	}
	f.o.OnDisconnect("c-guest")

	if got := f.o.Registry.State("c-guest"); got != app.StateClosed {
		t.Fatalf("state = %v, want %v", got, app.StateClosed)
	}
	if len(f.o.Groups.List()) != 0 {
		t.Fatalf("empty group kept after disconnect")
	}
	sess, err := f.o.Sessions.GetSessionByCode(ctx, f.code)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sess.HasParticipant(guestP.ID) {
		t.Fatalf("participant removed on disconnect")
	}
}
