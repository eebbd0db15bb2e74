// Package otelhooks counts cache events with OpenTelemetry metric instruments.
package otelhooks

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/tagcache"
)

// Hooks records every event as a counter increment. Keys are never used as
// attributes; tags are, so keep tag cardinality in mind.
type Hooks struct {
	stale       metric.Int64Counter
	corrupt     metric.Int64Counter
	revalidated metric.Int64Counter
	removed     metric.Int64Counter
	unavailable metric.Int64Counter
	degraded    metric.Int64Counter
	resets      metric.Int64Counter
}

var _ tagcache.Hooks = (*Hooks)(nil)

// New creates the instruments on meter.
func New(meter metric.Meter) (*Hooks, error) {
	h := &Hooks{}
	for _, c := range []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&h.stale, "tagcache.read.stale", "Entries discarded on read because a tag was revalidated later", "{entry}"},
		{&h.corrupt, "tagcache.read.corrupt", "Entries discarded on read because they could not be decoded", "{entry}"},
		{&h.revalidated, "tagcache.revalidate.total", "Tag revalidations", "{call}"},
		{&h.removed, "tagcache.revalidate.removed", "Keys removed by tag revalidation", "{entry}"},
		{&h.unavailable, "tagcache.handler.unavailable", "Handler operations that could not be served", "{call}"},
		{&h.degraded, "tagcache.selector.degraded", "Fallbacks to local-only operation", "{event}"},
		{&h.resets, "tagcache.connection.resets", "Shared connections dropped after an error", "{event}"},
	} {
		ctr, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = ctr
	}
	return h, nil
}

func (h *Hooks) StaleOnRead(_, tag string) {
	h.stale.Add(context.Background(), 1, metric.WithAttributes(attribute.String("tag", tag)))
}

func (h *Hooks) CorruptOnRead(string, error) {
	h.corrupt.Add(context.Background(), 1)
}

func (h *Hooks) TagRevalidated(tag string, removed int) {
	opt := metric.WithAttributes(attribute.String("tag", tag))
	h.revalidated.Add(context.Background(), 1, opt)
	if removed > 0 {
		h.removed.Add(context.Background(), int64(removed), opt)
	}
}

func (h *Hooks) HandlerUnavailable(handler, op string, _ error) {
	h.unavailable.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("handler", handler),
		attribute.String("op", op),
	))
}

func (h *Hooks) Degraded(error) {
	h.degraded.Add(context.Background(), 1)
}

func (h *Hooks) ConnectionReset(error) {
	h.resets.Add(context.Background(), 1)
}
