package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

type counting struct {
	tagcache.NopHooks
	mu    sync.Mutex
	stale int
	block chan struct{}
}

func (c *counting) StaleOnRead(string, string) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.stale++
	c.mu.Unlock()
}

func TestDeliversAndDrainsOnClose(t *testing.T) {
	inner := &counting{}
	h := New(inner, 2, 16)
	for i := 0; i < 10; i++ {
		h.StaleOnRead("k", "t")
	}
	h.Close()
	if inner.stale != 10 {
		t.Fatalf("delivered %d", inner.stale)
	}

	h.StaleOnRead("k", "t")
	h.Close()
	if h.Dropped() != 1 {
		t.Fatalf("events after Close should be dropped, dropped=%d", h.Dropped())
	}
}

func TestDropsWhenQueueIsFull(t *testing.T) {
	inner := &counting{block: make(chan struct{})}
	h := New(inner, 1, 1)
	for i := 0; i < 5; i++ {
		h.StaleOnRead("k", "t")
	}
	close(inner.block)
	h.Close()
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked worker and queue of 1")
	}
	if uint64(inner.stale)+h.Dropped() != 5 {
		t.Fatalf("delivered %d + dropped %d != 5", inner.stale, h.Dropped())
	}
}
