package tagcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking.
// Handlers call them on hot paths.
type Hooks interface {
	// An entry was discarded on read because tag was revalidated after it was written.
	StaleOnRead(key, tag string)

	// An entry could not be decoded and was discarded.
	CorruptOnRead(key string, err error)

	// A tag revalidation finished. removed is the number of keys deleted.
	TagRevalidated(tag string, removed int)

	// A handler could not answer op ∈ {"get", "set", "delete", "revalidate"}.
	HandlerUnavailable(handler, op string, err error)

	// The selector fell back to local-only operation.
	Degraded(err error)

	// The shared connection reported an error and will be re-established.
	ConnectionReset(err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) StaleOnRead(string, string)               {}
func (NopHooks) CorruptOnRead(string, error)              {}
func (NopHooks) TagRevalidated(string, int)               {}
func (NopHooks) HandlerUnavailable(string, string, error) {}
func (NopHooks) Degraded(error)                           {}
func (NopHooks) ConnectionReset(error)                    {}
