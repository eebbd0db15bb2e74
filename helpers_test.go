package tagcache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/storetest"
)

const (
	testLedger = "nextjs:_sharedTags_"
	testClock  = "nextjs:__revalidated_tags__"
)

// recHooks records hook calls.
type recHooks struct {
	mu          sync.Mutex
	stale       []string
	corrupt     []string
	revalidated map[string]int
	unavailable []string
	degraded    int
	resets      int
}

func newRecHooks() *recHooks { return &recHooks{revalidated: make(map[string]int)} }

func (h *recHooks) StaleOnRead(key, tag string) {
	h.mu.Lock()
	h.stale = append(h.stale, key+"|"+tag)
	h.mu.Unlock()
}

func (h *recHooks) CorruptOnRead(key string, _ error) {
	h.mu.Lock()
	h.corrupt = append(h.corrupt, key)
	h.mu.Unlock()
}

func (h *recHooks) TagRevalidated(tag string, removed int) {
	h.mu.Lock()
	h.revalidated[tag] += removed
	h.mu.Unlock()
}

func (h *recHooks) HandlerUnavailable(handler, op string, _ error) {
	h.mu.Lock()
	h.unavailable = append(h.unavailable, handler+"|"+op)
	h.mu.Unlock()
}

func (h *recHooks) Degraded(error) {
	h.mu.Lock()
	h.degraded++
	h.mu.Unlock()
}

func (h *recHooks) ConnectionReset(error) {
	h.mu.Lock()
	h.resets++
	h.mu.Unlock()
}

func (h *recHooks) counts() (degraded, resets int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degraded, h.resets
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(ms int64) *fakeClock { return &fakeClock{now: time.UnixMilli(ms)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(ms int64) {
	c.mu.Lock()
	c.now = time.UnixMilli(ms)
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRemote(t *testing.T, mem *storetest.Mem, optsOpt func(*RemoteOptions)) *RemoteHandler {
	t.Helper()
	opts := RemoteOptions{Store: mem}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	h, err := NewRemoteHandler(opts)
	if err != nil {
		t.Fatalf("NewRemoteHandler: %v", err)
	}
	return h
}

func fetchEntry(lastModified int64, tags ...string) *Entry {
	if tags == nil {
		tags = []string{}
	}
	return &Entry{
		Value: &Value{
			Kind: KindFetch,
			Data: &FetchData{
				Headers: map[string]string{"content-type": "application/json"},
				Body:    `{"ok":true}`,
				Status:  200,
				URL:     "https://api.example.com/items",
			},
			Revalidate: 60,
		},
		Tags:         tags,
		LastModified: lastModified,
	}
}

func mustSet(t *testing.T, h Handler, key string, e *Entry) {
	t.Helper()
	if err := h.Set(context.Background(), key, e, Meta{}); err != nil {
		t.Fatalf("Set(%q): %v", key, err)
	}
}

func mustRevalidate(t *testing.T, h Handler, tag string) {
	t.Helper()
	if err := h.RevalidateTag(context.Background(), tag); err != nil {
		t.Fatalf("RevalidateTag(%q): %v", tag, err)
	}
}
