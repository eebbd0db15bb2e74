package tagcache

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/tagcache/internal/tagstore"
	"github.com/unkn0wn-root/tagcache/internal/util"
	"github.com/unkn0wn-root/tagcache/store"
)

// RemoteOptions configures a RemoteHandler.
type RemoteOptions struct {
	// Store is the shared connection. Required. The handler borrows it and
	// never closes it.
	Store store.Store
	// KeyPrefix namespaces every raw key and both hash structures. Default "nextjs:".
	KeyPrefix string
	// SharedTagsKey names the tag ledger hash (after the prefix). Default "_sharedTags_".
	SharedTagsKey string
	// Timeout bounds every store round trip, and every joint write as a whole.
	// Default 1s; negative disables the bound.
	Timeout time.Duration
	// QuerySize is the number of ledger fields fetched per scan page. Default 100.
	QuerySize int64
	// Codec serializes entries. Zero value is JSON.
	Codec EntryCodec

	Logger Logger
	Hooks  Hooks
	// Now stamps revalidation times. Default time.Now.
	Now func() time.Time
}

// RemoteHandler keeps entries in the shared store. It tracks explicit tags in
// the tag ledger and implicit tag revalidations in the revalidation clock.
//
// It never swallows errors: a store that is not ready or does not answer in
// time surfaces as an Unavailable lookup or a returned error.
type RemoteHandler struct {
	st      store.Store
	prefix  string
	timeout time.Duration
	ledger  *tagstore.Ledger
	clock   *tagstore.Clock
	codec   EntryCodec
	log     Logger
	hooks   Hooks
	now     func() time.Time
}

var _ Handler = (*RemoteHandler)(nil)

func NewRemoteHandler(opts RemoteOptions) (*RemoteHandler, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("tagcache: remote store is required")
	}

	h := &RemoteHandler{
		prefix: coalesce(opts.KeyPrefix, DefaultKeyPrefix),
		codec:  opts.Codec,
	}
	h.timeout = coalesce(opts.Timeout, DefaultTimeout)
	h.log = named(coalesce[Logger](opts.Logger, NopLogger{}), "remote")
	h.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	h.now = opts.Now
	if h.now == nil {
		h.now = time.Now
	}

	h.st = store.Timed(opts.Store, h.timeout)
	ledgerKey := util.LedgerKey(h.prefix, coalesce(opts.SharedTagsKey, DefaultSharedTagsKey))
	h.ledger = tagstore.NewLedger(h.st, ledgerKey, coalesce(opts.QuerySize, tagstore.DefaultPageSize))
	h.clock = tagstore.NewClock(h.st, util.ClockKey(h.prefix))
	return h, nil
}

func (h *RemoteHandler) Name() string { return "remote" }

func (h *RemoteHandler) Get(ctx context.Context, key string, meta Meta) Lookup {
	if !h.st.Ready() {
		return Unavailable(store.ErrNotReady)
	}

	raw := util.RawKey(h.prefix, key)
	b, ok, err := h.st.Get(ctx, raw)
	if err != nil {
		return Unavailable(fmt.Errorf("get %q: %w", key, err))
	}
	if !ok {
		h.log.Debug("miss", Fields{"key": key})
		return Miss()
	}

	e, err := h.codec.Decode(b)
	if err != nil {
		h.hooks.CorruptOnRead(key, err)
		h.log.Warn("discarding undecodable entry", Fields{"key": key, "err": err})
		h.discard(ctx, key, raw)
		return Unavailable(&DecodeError{Key: key, Err: err})
	}

	tags := combineTags(e.Tags, meta.ImplicitTags)
	if len(tags) == 0 {
		return Hit(e)
	}

	times, err := h.clock.Times(ctx, tags)
	if err != nil {
		return Unavailable(fmt.Errorf("get %q: revalidation times: %w", key, err))
	}
	for _, tag := range tags {
		at, ok := times[tag]
		if !ok || at <= e.LastModified {
			continue
		}
		h.hooks.StaleOnRead(key, tag)
		h.log.Debug("stale entry", Fields{"key": key, "tag": tag, "revalidatedAt": at, "lastModified": e.LastModified})
		h.discard(ctx, key, raw)
		return Miss()
	}
	return Hit(e)
}

// discard removes a raw key on the read path. Failures are only logged.
func (h *RemoteHandler) discard(ctx context.Context, key, raw string) {
	if err := h.st.Unlink(ctx, raw); err != nil {
		h.log.Warn("discard failed", Fields{"key": key, "err": err})
	}
}

// Set writes the value (with its absolute expiry) and the ledger field
// concurrently. Both must land within one timeout window.
func (h *RemoteHandler) Set(ctx context.Context, key string, e *Entry, _ Meta) error {
	if !h.st.Ready() {
		return store.ErrNotReady
	}
	if e == nil {
		return fmt.Errorf("tagcache: set %q: nil entry", key)
	}
	b, err := h.codec.Encode(e)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}

	raw := util.RawKey(h.prefix, key)
	expireAt := e.expireAt()
	tags := slices.DeleteFunc(slices.Clone(e.Tags), IsImplicitTag)

	err = store.WithTimeout(ctx, h.timeout, func(ctx context.Context) error {
		var valueErr, ledgerErr error
		var g errgroup.Group
		g.Go(func() error {
			valueErr = h.st.Set(ctx, raw, b, expireAt)
			return nil
		})
		if len(tags) > 0 {
			g.Go(func() error {
				ledgerErr = h.ledger.Put(ctx, key, tags)
				return nil
			})
		}
		_ = g.Wait()
		return partial("set", key, valueErr, ledgerErr)
	})
	if err != nil {
		return err
	}
	h.log.Debug("stored", Fields{"key": key, "bytes": len(b), "tags": len(tags), "expireAt": expireAt})
	return nil
}

// Delete removes the value and its ledger field concurrently.
func (h *RemoteHandler) Delete(ctx context.Context, key string) error {
	if !h.st.Ready() {
		return store.ErrNotReady
	}
	return h.remove(ctx, "delete", key, []string{key})
}

// RevalidateTag invalidates everything written with tag. An implicit tag is
// stamped into the revalidation clock first, which makes entries that carry
// it only at read time stale. Then the whole ledger is scanned and every key
// recorded with tag is deleted together with its ledger field.
func (h *RemoteHandler) RevalidateTag(ctx context.Context, tag string) error {
	if !h.st.Ready() {
		return store.ErrNotReady
	}

	if IsImplicitTag(tag) {
		if err := h.clock.Mark(ctx, tag, h.now()); err != nil {
			return fmt.Errorf("revalidate %q: mark: %w", tag, err)
		}
	}

	keys, err := h.ledger.KeysWithTag(ctx, tag)
	if err != nil {
		return fmt.Errorf("revalidate %q: scan: %w", tag, err)
	}
	if len(keys) == 0 {
		h.hooks.TagRevalidated(tag, 0)
		return nil
	}
	if err := h.remove(ctx, "revalidate", tag, keys); err != nil {
		return err
	}
	h.hooks.TagRevalidated(tag, len(keys))
	h.log.Debug("revalidated", Fields{"tag": tag, "removed": len(keys)})
	return nil
}

// remove unlinks the raw keys of cacheKeys and drops their ledger fields
// within one timeout window.
func (h *RemoteHandler) remove(ctx context.Context, op, subject string, cacheKeys []string) error {
	raws := util.RawKeys(h.prefix, cacheKeys)
	return store.WithTimeout(ctx, h.timeout, func(ctx context.Context) error {
		var valueErr, ledgerErr error
		var g errgroup.Group
		g.Go(func() error {
			valueErr = h.st.Unlink(ctx, raws...)
			return nil
		})
		g.Go(func() error {
			ledgerErr = h.ledger.Remove(ctx, cacheKeys...)
			return nil
		})
		_ = g.Wait()
		return partial(op, subject, valueErr, ledgerErr)
	})
}
