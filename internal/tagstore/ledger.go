// Package tagstore holds the two hash structures the remote handler keeps in
// the shared store: the tag ledger (cache key -> tags written with it) and
// the revalidation clock (implicit tag -> last revalidation time).
package tagstore

import (
	"context"
	"iter"
	"slices"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/store"
)

// DefaultPageSize is the number of ledger fields requested per scan round trip.
const DefaultPageSize = 100

// Record is one ledger field. Corrupt is set when the stored tag set could
// not be decoded; Tags is nil in that case.
type Record struct {
	Key     string
	Tags    []string
	Corrupt bool
}

// Ledger maps each cache key to the explicit tags it was last written with.
// Tag sets are stored as JSON arrays so handlers in other runtimes can share
// the structure.
type Ledger struct {
	st       store.Store
	key      string
	pageSize int64
	codec    codec.Codec[[]string]
}

func NewLedger(st store.Store, key string, pageSize int64) *Ledger {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Ledger{st: st, key: key, pageSize: pageSize, codec: codec.JSON[[]string]{}}
}

// Key returns the hash key the ledger lives under.
func (l *Ledger) Key() string { return l.key }

// Put overwrites the tag set recorded for cacheKey.
func (l *Ledger) Put(ctx context.Context, cacheKey string, tags []string) error {
	b, err := l.codec.Encode(tags)
	if err != nil {
		return err
	}
	return l.st.HSet(ctx, l.key, cacheKey, b)
}

// Remove drops the ledger fields of cacheKeys.
func (l *Ledger) Remove(ctx context.Context, cacheKeys ...string) error {
	return l.st.HDel(ctx, l.key, cacheKeys...)
}

// Pages walks the ledger with a cursor, yielding one page per round trip
// until the store reports cursor zero. Each range over the sequence starts a
// fresh scan. A store error is yielded once and ends the sequence.
//
// Fields may repeat across pages while the hash is being modified; callers
// should merge by key.
func (l *Ledger) Pages(ctx context.Context) iter.Seq2[[]Record, error] {
	return func(yield func([]Record, error) bool) {
		var cursor uint64
		for {
			fields, next, err := l.st.HScan(ctx, l.key, cursor, l.pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			page := make([]Record, 0, len(fields))
			for _, f := range fields {
				tags, derr := l.codec.Decode([]byte(f.Value))
				page = append(page, Record{Key: f.Name, Tags: tags, Corrupt: derr != nil})
			}
			if !yield(page, nil) {
				return
			}
			cursor = next
			if cursor == 0 {
				return
			}
		}
	}
}

// Snapshot merges all pages into a single key -> record map.
func (l *Ledger) Snapshot(ctx context.Context) (map[string]Record, error) {
	all := make(map[string]Record)
	for page, err := range l.Pages(ctx) {
		if err != nil {
			return nil, err
		}
		for _, r := range page {
			all[r.Key] = r
		}
	}
	return all, nil
}

// KeysWithTag returns every cache key whose recorded tag set contains tag.
// Keys with an unreadable tag set are included: their membership is unknown
// and dropping them is the only safe answer.
func (l *Ledger) KeysWithTag(ctx context.Context, tag string) ([]string, error) {
	all, err := l.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var keys []string
	for k, r := range all {
		if r.Corrupt || slices.Contains(r.Tags, tag) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}
