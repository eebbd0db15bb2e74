// Package tagcache implements a tag-aware cache handler for server-side
// rendering frameworks. Entries live in a shared redis-compatible store and
// are invalidated by tag; when the store is unreachable the handler narrows
// to a bounded in-process cache.
//
// Components:
//   - RemoteHandler: get/set/delete/revalidateTag against the shared store,
//     every round trip bounded by a timeout.
//   - LocalHandler: bounded in-process cache (LRU by default) over a provider.Provider.
//   - Composite: routes writes with a SetStrategy, reads first-hit-wins,
//     fans mutations out to every handler.
//   - Connector: process-scoped owner of the shared connection, one dial in flight.
//   - Selector: the framework entry point; errors never reach the caller.
//
// Store layout (prefix defaults to "nextjs:"):
//
//	<prefix><key>                  - wire envelope + encoded entry, optional absolute expiry
//	<prefix>_sharedTags_           - hash: key -> JSON array of explicit tags (tag ledger)
//	<prefix>__revalidated_tags__   - hash: implicit tag -> epoch ms of last revalidation
//
// The entry envelope is a short binary header (magic, version, codec id,
// payload length) followed by the JSON, msgpack or CBOR document, so readers
// in other runtimes must skip the header before parsing. Ledger and clock
// values are plain text.
//
// Staleness: an entry read through RemoteHandler is dropped when any of its
// explicit tags or the caller's implicit tags was revalidated strictly after
// the entry's LastModified. Explicit tags are invalidated eagerly by
// RevalidateTag, implicit tags lazily on read.
package tagcache
