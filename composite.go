package tagcache

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// SetStrategy picks the index of the handler that receives a write.
type SetStrategy func(key string, e *Entry, meta Meta) int

// TagStrategy routes writes carrying tag to handler 0 and everything else
// to handler 1. Meta.Tags is consulted first, then the entry's own tags.
func TagStrategy(tag string) SetStrategy {
	return func(_ string, e *Entry, meta Meta) int {
		tags := meta.Tags
		if len(tags) == 0 && e != nil {
			tags = e.Tags
		}
		for _, t := range tags {
			if t == tag {
				return 0
			}
		}
		return 1
	}
}

// CompositeOptions configures a Composite.
type CompositeOptions struct {
	// Handlers in lookup order. Required.
	Handlers []Handler
	// SetStrategy picks the handler for each write. Nil writes to Handlers[0].
	SetStrategy SetStrategy

	Logger Logger
	Hooks  Hooks
}

// Composite delegates to several handlers. Get asks each in order and the
// first hit wins; Set goes to the one handler chosen by the strategy;
// Delete and RevalidateTag fan out to all of them.
type Composite struct {
	handlers []Handler
	strategy SetStrategy
	log      Logger
	hooks    Hooks
}

var _ Handler = (*Composite)(nil)

func NewComposite(opts CompositeOptions) (*Composite, error) {
	if len(opts.Handlers) == 0 {
		return nil, ErrNoHandlers
	}
	c := &Composite{
		handlers: append([]Handler(nil), opts.Handlers...),
		strategy: opts.SetStrategy,
	}
	c.log = named(coalesce[Logger](opts.Logger, NopLogger{}), "composite")
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	return c, nil
}

func (c *Composite) Name() string { return "composite" }

// Handlers returns the delegates in lookup order.
func (c *Composite) Handlers() []Handler { return append([]Handler(nil), c.handlers...) }

// Get returns the first hit. It is Unavailable only when every handler was.
func (c *Composite) Get(ctx context.Context, key string, meta Meta) Lookup {
	var errs []error
	for _, h := range c.handlers {
		l := h.Get(ctx, key, meta)
		if l.OK() {
			return l
		}
		if l.IsUnavailable() {
			c.hooks.HandlerUnavailable(h.Name(), "get", l.Err())
			c.log.Debug("handler unavailable, trying next", Fields{"key": key, "delegate": h.Name(), "err": l.Err()})
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), l.Err()))
		}
	}
	if len(errs) == len(c.handlers) {
		return Unavailable(errors.Join(errs...))
	}
	return Miss()
}

func (c *Composite) Set(ctx context.Context, key string, e *Entry, meta Meta) error {
	i := 0
	if c.strategy != nil {
		i = c.strategy(key, e, meta)
	}
	if i < 0 || i >= len(c.handlers) {
		return fmt.Errorf("%w: %d of %d", ErrBadStrategyIndex, i, len(c.handlers))
	}
	h := c.handlers[i]
	if err := h.Set(ctx, key, e, meta); err != nil {
		c.hooks.HandlerUnavailable(h.Name(), "set", err)
		return fmt.Errorf("%s: %w", h.Name(), err)
	}
	return nil
}

func (c *Composite) Delete(ctx context.Context, key string) error {
	return c.fanOut(ctx, "delete", func(ctx context.Context, h Handler) error {
		return h.Delete(ctx, key)
	})
}

func (c *Composite) RevalidateTag(ctx context.Context, tag string) error {
	return c.fanOut(ctx, "revalidate", func(ctx context.Context, h Handler) error {
		return h.RevalidateTag(ctx, tag)
	})
}

// fanOut runs fn on every handler concurrently. One failure does not stop
// the others; all failures are joined.
func (c *Composite) fanOut(ctx context.Context, op string, fn func(context.Context, Handler) error) error {
	errs := make([]error, len(c.handlers))
	var g errgroup.Group
	for i, h := range c.handlers {
		g.Go(func() error {
			if err := fn(ctx, h); err != nil {
				c.hooks.HandlerUnavailable(h.Name(), op, err)
				errs[i] = fmt.Errorf("%s: %w", h.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
