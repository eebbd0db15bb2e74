package tagcache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSelector(t *testing.T, d *fakeDialer, clock *fakeClock, hooks *recHooks) (*Selector, *LocalHandler) {
	t.Helper()
	conn := newTestConnector(t, d, true, hooks)
	local := newTestLocal(t, 10, nil)
	s, err := NewSelector(SelectorOptions{
		Connector:     conn,
		Local:         local,
		RetryInterval: time.Minute,
		Hooks:         hooks,
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("NewSelector: %v", err)
	}
	return s, local
}

func TestSelectorComposesLocalAndRemote(t *testing.T) {
	d := &fakeDialer{}
	s, local := newTestSelector(t, d, newFakeClock(0), newRecHooks())
	ctx := context.Background()

	c, ok := s.Handler(ctx).(*Composite)
	if !ok {
		t.Fatalf("expected composite, got %T", s.Handler(ctx))
	}
	hs := c.Handlers()
	if len(hs) != 2 || hs[0] != Handler(local) || hs[1].Name() != "remote" {
		t.Fatalf("handlers = %v", hs)
	}

	s.Set(ctx, "shared", fetchEntry(1, "x"), Meta{})
	s.Set(ctx, "mem", fetchEntry(1, DefaultMemoryTag), Meta{})
	mem := d.stores[0]
	if !mem.Has("nextjs:shared") || mem.Has("nextjs:mem") {
		t.Fatalf("shared write should go remote, memory-tagged write local")
	}
	if !local.Get(ctx, "mem", Meta{}).OK() {
		t.Fatalf("memory-tagged write missing from local")
	}

	if e, ok := s.Get(ctx, "shared", Meta{}); !ok || e.Tags[0] != "x" {
		t.Fatalf("get shared = %v,%v", e, ok)
	}
	s.RevalidateTag(ctx, "x", DefaultMemoryTag)
	if _, ok := s.Get(ctx, "shared", Meta{}); ok {
		t.Fatalf("shared should be revalidated away")
	}
	if _, ok := s.Get(ctx, "mem", Meta{}); ok {
		t.Fatalf("mem should be revalidated away")
	}
	if d.count() != 1 {
		t.Fatalf("dials = %d", d.count())
	}
}

func TestSelectorDegradesAndRetriesAfterInterval(t *testing.T) {
	hooks := newRecHooks()
	clock := newFakeClock(0)
	d := &fakeDialer{err: errors.New("connection refused")}
	s, local := newTestSelector(t, d, clock, hooks)
	ctx := context.Background()

	if h := s.Handler(ctx); h != Handler(local) {
		t.Fatalf("expected local handler while degraded, got %T", h)
	}
	if degraded, _ := hooks.counts(); degraded != 1 {
		t.Fatalf("degraded = %d", degraded)
	}

	// Writes and reads keep working against the local handler.
	s.Set(ctx, "k", fetchEntry(1), Meta{})
	if _, ok := s.Get(ctx, "k", Meta{}); !ok {
		t.Fatalf("local fallback should serve reads")
	}
	if d.count() != 1 {
		t.Fatalf("degraded configuration should be reused, dials=%d", d.count())
	}

	d.setErr(nil)
	clock.Advance(2 * time.Minute)
	if _, ok := s.Handler(ctx).(*Composite); !ok {
		t.Fatalf("expected reconnect after retry interval")
	}
	if d.count() != 2 {
		t.Fatalf("dials = %d", d.count())
	}
}

func TestSelectorRebuildsAfterConnectionError(t *testing.T) {
	d := &fakeDialer{}
	s, _ := newTestSelector(t, d, newFakeClock(0), newRecHooks())
	ctx := context.Background()

	first := s.Handler(ctx)
	if s.Handler(ctx) != first {
		t.Fatalf("handler should be cached")
	}
	d.fail(0, errors.New("reset"))
	second := s.Handler(ctx)
	if second == first || d.count() != 2 {
		t.Fatalf("expected rebuild on a fresh connection, dials=%d", d.count())
	}
}

func TestSelectorLocalOnly(t *testing.T) {
	d := &fakeDialer{}
	conn := newTestConnector(t, d, true, nil)
	local := newTestLocal(t, 10, nil)
	s, err := NewSelector(SelectorOptions{Connector: conn, Local: local, LocalOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if s.Handler(context.Background()) != Handler(local) {
		t.Fatalf("local only mode must not use the remote handler")
	}
	if d.count() != 0 {
		t.Fatalf("local only mode must not dial")
	}
	if err := s.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestSelectorRemoteFailureIsAMiss(t *testing.T) {
	d := &fakeDialer{}
	s, _ := newTestSelector(t, d, newFakeClock(0), newRecHooks())
	ctx := context.Background()

	s.Set(ctx, "k", fetchEntry(1), Meta{})
	d.stores[0].SetReady(false)
	if e, ok := s.Get(ctx, "k", Meta{}); ok || e != nil {
		t.Fatalf("unavailable remote should read as a miss")
	}
	// Must not panic or surface errors.
	s.Set(ctx, "k", fetchEntry(2), Meta{})
	s.Delete(ctx, "k")
	s.RevalidateTag(ctx, "x")
}
