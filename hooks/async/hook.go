// Package asynchook moves hook delivery off the cache's hot paths.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{StaleEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	remote, _ := tagcache.NewRemoteHandler(tagcache.RemoteOptions{
//	    Store: st,
//	    Hooks: hooks, // or `raw` if you don't want async
//	})
//
// Events are dropped when the queue is full. Events sent after Close are dropped.
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Hooks struct {
	inner   tagcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(inner tagcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns the number of events lost to a full queue or after Close.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) StaleOnRead(k, tag string)         { h.try(func() { h.inner.StaleOnRead(k, tag) }) }
func (h *Hooks) CorruptOnRead(k string, err error) { h.try(func() { h.inner.CorruptOnRead(k, err) }) }
func (h *Hooks) TagRevalidated(tag string, n int)  { h.try(func() { h.inner.TagRevalidated(tag, n) }) }
func (h *Hooks) Degraded(err error)                { h.try(func() { h.inner.Degraded(err) }) }
func (h *Hooks) ConnectionReset(err error)         { h.try(func() { h.inner.ConnectionReset(err) }) }
func (h *Hooks) HandlerUnavailable(name, op string, err error) {
	h.try(func() { h.inner.HandlerUnavailable(name, op, err) })
}
