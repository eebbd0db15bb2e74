package tagcache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/unkn0wn-root/tagcache/provider"
)

// LocalOptions configures a LocalHandler.
type LocalOptions struct {
	// Provider holds encoded entries. Required.
	Provider provider.Provider
	// Codec serializes entries. Zero value is JSON.
	Codec EntryCodec

	Logger Logger
	Hooks  Hooks
	// Now is the clock for lifespan checks. Default time.Now.
	Now func() time.Time
}

// LocalHandler is the in-process fallback. It has no ledger and no clock:
// RevalidateTag evicts the keys indexed under the tag in this process and
// nothing else, so implicit tags are never consulted.
type LocalHandler struct {
	p     provider.Provider
	codec EntryCodec
	log   Logger
	hooks Hooks
	now   func() time.Time

	mu      sync.Mutex
	gen     uint64
	byTag   map[string]map[string]struct{}
	keyTags map[string]indexed
}

// indexed is one key's tag set and the index generation that wrote it.
type indexed struct {
	tags []string
	gen  uint64
}

var _ Handler = (*LocalHandler)(nil)

func NewLocalHandler(opts LocalOptions) (*LocalHandler, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("tagcache: local provider is required")
	}
	h := &LocalHandler{
		p:       opts.Provider,
		codec:   opts.Codec,
		byTag:   make(map[string]map[string]struct{}),
		keyTags: make(map[string]indexed),
	}
	h.log = named(coalesce[Logger](opts.Logger, NopLogger{}), "local")
	h.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	h.now = opts.Now
	if h.now == nil {
		h.now = time.Now
	}
	return h, nil
}

func (h *LocalHandler) Name() string { return "local" }

func (h *LocalHandler) Get(ctx context.Context, key string, _ Meta) Lookup {
	b, ok, err := h.p.Get(ctx, key)
	if err != nil {
		return Unavailable(fmt.Errorf("get %q: %w", key, err))
	}
	if !ok {
		h.Evicted(key)
		return Miss()
	}
	e, err := h.codec.Decode(b)
	if err != nil {
		h.hooks.CorruptOnRead(key, err)
		h.drop(ctx, key)
		return Unavailable(&DecodeError{Key: key, Err: err})
	}
	if e.expired(h.now()) {
		h.drop(ctx, key)
		return Miss()
	}
	return Hit(e)
}

// Set stores e unless its lifespan has already run out.
func (h *LocalHandler) Set(ctx context.Context, key string, e *Entry, _ Meta) error {
	if e == nil {
		return fmt.Errorf("tagcache: set %q: nil entry", key)
	}
	var ttl time.Duration
	if at := e.expireAt(); !at.IsZero() {
		ttl = at.Sub(h.now())
		if ttl <= 0 {
			h.drop(ctx, key)
			return nil
		}
	}
	b, err := h.codec.Encode(e)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	ok, err := h.p.Set(ctx, key, b, 1, ttl)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	if !ok {
		h.log.Debug("provider rejected set", Fields{"key": key})
		return nil
	}
	h.index(key, e.Tags)
	return nil
}

func (h *LocalHandler) Delete(ctx context.Context, key string) error {
	err := h.p.Del(ctx, key)
	h.Evicted(key)
	return err
}

func (h *LocalHandler) RevalidateTag(ctx context.Context, tag string) error {
	h.mu.Lock()
	keys := make([]string, 0, len(h.byTag[tag]))
	for k := range h.byTag[tag] {
		keys = append(keys, k)
	}
	for _, k := range keys {
		h.unindexLocked(k)
	}
	h.mu.Unlock()

	var firstErr error
	for _, k := range keys {
		if err := h.p.Del(ctx, k); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.hooks.TagRevalidated(tag, len(keys))
	return firstErr
}

// Evicted forgets key in the tag index unless the provider holds a value for
// it again, which means a Set raced the removal and owns the index entry.
// Wire it to the provider's eviction callback where one exists; keys evicted
// silently are forgotten on their next miss. It reads the provider, so the
// callback must not run under the provider's own lock.
func (h *LocalHandler) Evicted(key string) {
	h.mu.Lock()
	gen := h.keyTags[key].gen
	h.mu.Unlock()

	if _, ok, err := h.p.Get(context.Background(), key); ok && err == nil {
		return
	}

	h.mu.Lock()
	if h.keyTags[key].gen == gen {
		h.unindexLocked(key)
	}
	h.mu.Unlock()
}

// Close releases the provider.
func (h *LocalHandler) Close(ctx context.Context) error {
	return h.p.Close(ctx)
}

func (h *LocalHandler) drop(ctx context.Context, key string) {
	if err := h.p.Del(ctx, key); err != nil {
		h.log.Warn("drop failed", Fields{"key": key, "err": err})
	}
	h.Evicted(key)
}

func (h *LocalHandler) index(key string, tags []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unindexLocked(key)
	if len(tags) == 0 {
		return
	}
	tags = slices.Clone(tags)
	h.gen++
	h.keyTags[key] = indexed{tags: tags, gen: h.gen}
	for _, t := range tags {
		set := h.byTag[t]
		if set == nil {
			set = make(map[string]struct{})
			h.byTag[t] = set
		}
		set[key] = struct{}{}
	}
}

func (h *LocalHandler) unindexLocked(key string) {
	for _, t := range h.keyTags[key].tags {
		set := h.byTag[t]
		delete(set, key)
		if len(set) == 0 {
			delete(h.byTag, t)
		}
	}
	delete(h.keyTags, key)
}
