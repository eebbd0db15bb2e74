package tagcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/tagcache/store"
)

// SelectorOptions configures a Selector.
type SelectorOptions struct {
	// Connector supplies the shared store. Nil means local only.
	Connector *Connector
	// Local is the fallback handler. Required.
	Local *LocalHandler
	// LocalOnly skips the remote store entirely (development).
	LocalOnly bool
	// Remote is the template for remote handlers; Store is filled in from
	// the connector.
	Remote RemoteOptions
	// MemoryTag routes writes carrying it to the local handler. Default "memory-cache".
	MemoryTag string
	// SetStrategy overrides the MemoryTag routing. Index 0 is local, 1 remote.
	SetStrategy SetStrategy
	// RetryInterval is how long a failed connection keeps the selector local
	// only before the next attempt. Default 30s.
	RetryInterval time.Duration

	Logger Logger
	Hooks  Hooks
	Now    func() time.Time
}

// Selector is the entry point for the framework. It composes the local and
// remote handlers over the connector's shared store and keeps that
// configuration until the connection is invalidated.
//
// It never fails: when the store cannot be reached it narrows to the local
// handler and logs a warning. Operation failures are logged and otherwise
// look like misses.
type Selector struct {
	conn      *Connector
	local     *LocalHandler
	localOnly bool
	remote    RemoteOptions
	strategy  SetStrategy
	retry     time.Duration
	log       Logger
	hooks     Hooks
	now       func() time.Time

	sf singleflight.Group

	mu            sync.Mutex
	handler       Handler
	st            store.Store // nil while degraded
	degradedUntil time.Time
}

func NewSelector(opts SelectorOptions) (*Selector, error) {
	if opts.Local == nil {
		return nil, fmt.Errorf("tagcache: local handler is required")
	}
	s := &Selector{
		conn:      opts.Connector,
		local:     opts.Local,
		localOnly: opts.LocalOnly || opts.Connector == nil,
		remote:    opts.Remote,
		strategy:  opts.SetStrategy,
	}
	if s.strategy == nil {
		s.strategy = TagStrategy(coalesce(opts.MemoryTag, DefaultMemoryTag))
	}
	s.retry = coalesce(opts.RetryInterval, DefaultRetryInterval)
	s.log = named(coalesce[Logger](opts.Logger, NopLogger{}), "selector")
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.now = opts.Now
	if s.now == nil {
		s.now = time.Now
	}
	if s.remote.Logger == nil {
		s.remote.Logger = opts.Logger
	}
	if s.remote.Hooks == nil {
		s.remote.Hooks = opts.Hooks
	}
	return s, nil
}

// Handler returns the current configuration, building it on first use or
// after the connection was invalidated. Concurrent callers share one build.
func (s *Selector) Handler(ctx context.Context) Handler {
	if s.localOnly {
		return s.local
	}
	if h := s.cached(); h != nil {
		return h
	}

	ch := s.sf.DoChan("handler", func() (any, error) {
		if h := s.cached(); h != nil {
			return h, nil
		}
		return s.build(context.WithoutCancel(ctx)), nil
	})
	select {
	case res := <-ch:
		return res.Val.(Handler)
	case <-ctx.Done():
		return s.local
	}
}

func (s *Selector) cached() Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.handler == nil:
		return nil
	case s.st == nil:
		if s.now().Before(s.degradedUntil) {
			return s.handler
		}
		return nil
	case s.conn.Valid(s.st):
		return s.handler
	default:
		return nil
	}
}

func (s *Selector) build(ctx context.Context) Handler {
	st, err := s.conn.GetOrCreate(ctx)
	if err == nil {
		var h Handler
		h, err = s.compose(st)
		if err == nil {
			s.mu.Lock()
			s.handler, s.st = h, st
			s.mu.Unlock()
			s.log.Info("remote store connected", nil)
			return h
		}
	}

	s.hooks.Degraded(err)
	s.log.Warn("remote store unavailable, using local cache only", Fields{"err": err, "retryIn": s.retry.String()})
	s.mu.Lock()
	s.handler, s.st = s.local, nil
	s.degradedUntil = s.now().Add(s.retry)
	s.mu.Unlock()
	return s.local
}

func (s *Selector) compose(st store.Store) (Handler, error) {
	opts := s.remote
	opts.Store = st
	remote, err := NewRemoteHandler(opts)
	if err != nil {
		return nil, err
	}
	return NewComposite(CompositeOptions{
		Handlers:    []Handler{s.local, remote},
		SetStrategy: s.strategy,
		Logger:      s.remote.Logger,
		Hooks:       s.remote.Hooks,
	})
}

// Get returns the cached entry. Any failure is reported as a miss.
func (s *Selector) Get(ctx context.Context, key string, meta Meta) (*Entry, bool) {
	l := s.Handler(ctx).Get(ctx, key, meta)
	if l.IsUnavailable() {
		s.log.Warn("get failed", Fields{"key": key, "err": l.Err()})
		return nil, false
	}
	return l.Entry(), l.OK()
}

func (s *Selector) Set(ctx context.Context, key string, e *Entry, meta Meta) {
	if err := s.Handler(ctx).Set(ctx, key, e, meta); err != nil {
		s.log.Warn("set failed", Fields{"key": key, "err": err})
	}
}

func (s *Selector) Delete(ctx context.Context, key string) {
	if err := s.Handler(ctx).Delete(ctx, key); err != nil {
		s.log.Warn("delete failed", Fields{"key": key, "err": err})
	}
}

// RevalidateTag revalidates each tag in turn.
func (s *Selector) RevalidateTag(ctx context.Context, tags ...string) {
	h := s.Handler(ctx)
	for _, tag := range tags {
		if err := h.RevalidateTag(ctx, tag); err != nil {
			s.log.Warn("revalidate failed", Fields{"tag": tag, "err": err})
		}
	}
}

// Close closes the connector and the local handler.
func (s *Selector) Close(ctx context.Context) error {
	var errs []error
	if s.conn != nil {
		errs = append(errs, s.conn.Close())
	}
	errs = append(errs, s.local.Close(ctx))
	return errors.Join(errs...)
}
