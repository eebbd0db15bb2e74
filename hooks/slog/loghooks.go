// Package sloghooks logs cache events through log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	StaleEvery       uint64
	UnavailableEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	staleCtr       atomic.Uint64
	unavailableCtr atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) StaleOnRead(key, tag string) {
	if h.l == nil || !sample(h.opts.StaleEvery, &h.staleCtr) {
		return
	}
	h.l.Debug("tagcache.stale_on_read",
		"key", h.redact(key),
		"tag", tag)
}

func (h *Hooks) CorruptOnRead(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.corrupt_on_read",
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) TagRevalidated(tag string, removed int) {
	if h.l == nil {
		return
	}
	h.l.Info("tagcache.tag_revalidated",
		"tag", tag,
		"removed", removed)
}

func (h *Hooks) HandlerUnavailable(handler, op string, err error) {
	if h.l == nil || !sample(h.opts.UnavailableEvery, &h.unavailableCtr) {
		return
	}
	h.l.Warn("tagcache.handler_unavailable",
		"handler", handler,
		"op", op,
		"err", err)
}

func (h *Hooks) Degraded(err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("tagcache.degraded",
		"err", err,
		"msg", "remote store unreachable; serving from local cache only")
}

func (h *Hooks) ConnectionReset(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("tagcache.connection_reset",
		"err", err)
}
