package tagcache

import "context"

// Handler is one cache backend. Implementations are safe for concurrent use.
//
// Handlers never swallow their own failures: Get reports them as an
// Unavailable lookup and mutations return the error, so a Composite can move
// on to the next handler.
type Handler interface {
	// Name identifies the handler in logs and hooks.
	Name() string

	Get(ctx context.Context, key string, meta Meta) Lookup
	Set(ctx context.Context, key string, e *Entry, meta Meta) error
	Delete(ctx context.Context, key string) error
	RevalidateTag(ctx context.Context, tag string) error
}

// Meta is per-call context supplied by the framework.
// It never participates in cache key derivation.
type Meta struct {
	// ImplicitTags are derived from the route structure; only meaningful for Get.
	ImplicitTags []string
	// Tags are the write-time tags, consulted by the SetStrategy.
	// When empty the entry's own tags are used.
	Tags []string
	// Headers carries request metadata for logging.
	Headers map[string]string
}

// Lookup is the result of Handler.Get: a hit, a miss, or an unavailable
// handler together with the reason.
type Lookup struct {
	entry *Entry
	err   error
}

func Hit(e *Entry) Lookup          { return Lookup{entry: e} }
func Miss() Lookup                 { return Lookup{} }
func Unavailable(err error) Lookup { return Lookup{err: err} }

// Entry returns the cached entry, nil unless OK.
func (l Lookup) Entry() *Entry { return l.entry }

// OK reports a hit.
func (l Lookup) OK() bool { return l.entry != nil }

// IsUnavailable reports that the handler could not answer.
func (l Lookup) IsUnavailable() bool { return l.err != nil }

// Err is the reason the handler could not answer.
func (l Lookup) Err() error { return l.err }
