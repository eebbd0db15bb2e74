// Package storetest provides an in-memory store.Store for tests, with knobs
// to stall or fail individual operations.
package storetest

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/tagcache/store"
)

// Operation names accepted by Stall and Fail.
const (
	OpGet     = "get"
	OpSet     = "set"
	OpUnlink  = "unlink"
	OpHSet    = "hset"
	OpHSetMax = "hsetmax"
	OpHMGet   = "hmget"
	OpHDel    = "hdel"
	OpHScan   = "hscan"
	OpPing    = "ping"
)

type entry struct {
	v   []byte
	exp time.Time // zero => no expiry
}

// Mem is a goroutine-safe in-memory Store. It starts ready.
type Mem struct {
	mu     sync.Mutex
	strs   map[string]entry
	hashes map[string]map[string]string
	stalls map[string]chan struct{}
	fails  map[string]error
	calls  map[string]int

	ready atomic.Bool
	Now   func() time.Time
}

var _ store.Store = (*Mem)(nil)

func New() *Mem {
	m := &Mem{
		strs:   make(map[string]entry),
		hashes: make(map[string]map[string]string),
		stalls: make(map[string]chan struct{}),
		fails:  make(map[string]error),
		calls:  make(map[string]int),
		Now:    time.Now,
	}
	m.ready.Store(true)
	return m
}

// SetReady toggles readiness.
func (m *Mem) SetReady(ok bool) { m.ready.Store(ok) }

// Stall makes op block until Release is called.
func (m *Mem) Stall(op string) {
	m.mu.Lock()
	m.stalls[op] = make(chan struct{})
	m.mu.Unlock()
}

// Release unblocks every stalled operation.
func (m *Mem) Release() {
	m.mu.Lock()
	for op, ch := range m.stalls {
		close(ch)
		delete(m.stalls, op)
	}
	m.mu.Unlock()
}

// Fail makes op return err. A nil err clears the failure.
func (m *Mem) Fail(op string, err error) {
	m.mu.Lock()
	if err == nil {
		delete(m.fails, op)
	} else {
		m.fails[op] = err
	}
	m.mu.Unlock()
}

// Calls returns how many times op was invoked.
func (m *Mem) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Has reports whether key holds an unexpired string value.
func (m *Mem) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.live(key)
	return ok
}

// Raw returns the stored bytes for key.
func (m *Mem) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	return e.v, ok
}

// Put writes key directly, bypassing stalls and failures.
func (m *Mem) Put(key string, v []byte) {
	m.mu.Lock()
	m.strs[key] = entry{v: v}
	m.mu.Unlock()
}

// Expiry returns the absolute expiry of key; ok is false when key is
// missing or has no expiry.
func (m *Mem) Expiry(key string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.strs[key]
	if !ok || e.exp.IsZero() {
		return time.Time{}, false
	}
	return e.exp, true
}

// HashField returns one hash field.
func (m *Mem) HashField(key, field string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.hashes[key][field]
	return v, ok
}

// PutField writes a hash field directly.
func (m *Mem) PutField(key, field, value string) {
	m.mu.Lock()
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	m.mu.Unlock()
}

// HashLen returns the number of fields in a hash.
func (m *Mem) HashLen(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.hashes[key])
}

func (m *Mem) live(key string) (entry, bool) {
	e, ok := m.strs[key]
	if !ok {
		return entry{}, false
	}
	if !e.exp.IsZero() && !m.Now().Before(e.exp) {
		delete(m.strs, key)
		return entry{}, false
	}
	return e, true
}

// enter records the call and applies stalls/failures for op.
func (m *Mem) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	stall := m.stalls[op]
	err := m.fails[op]
	m.mu.Unlock()
	if stall != nil {
		select {
		case <-stall:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *Mem) Ready() bool { return m.ready.Load() }

func (m *Mem) Ping(ctx context.Context) error {
	if err := m.enter(ctx, OpPing); err != nil {
		m.ready.Store(false)
		return err
	}
	m.ready.Store(true)
	return nil
}

func (m *Mem) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := m.enter(ctx, OpGet); err != nil {
		return nil, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.v...), true, nil
}

func (m *Mem) Set(ctx context.Context, key string, value []byte, expireAt time.Time) error {
	if err := m.enter(ctx, OpSet); err != nil {
		return err
	}
	m.mu.Lock()
	m.strs[key] = entry{v: append([]byte(nil), value...), exp: expireAt}
	m.mu.Unlock()
	return nil
}

func (m *Mem) Unlink(ctx context.Context, keys ...string) error {
	if err := m.enter(ctx, OpUnlink); err != nil {
		return err
	}
	m.mu.Lock()
	for _, k := range keys {
		delete(m.strs, k)
	}
	m.mu.Unlock()
	return nil
}

func (m *Mem) HSet(ctx context.Context, key, field string, value []byte) error {
	if err := m.enter(ctx, OpHSet); err != nil {
		return err
	}
	m.PutField(key, field, string(value))
	return nil
}

func (m *Mem) HSetMax(ctx context.Context, key, field string, value int64) error {
	if err := m.enter(ctx, OpHSetMax); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	if cur, ok := h[field]; ok {
		if n, err := strconv.ParseInt(cur, 10, 64); err == nil && n >= value {
			return nil
		}
	}
	h[field] = strconv.FormatInt(value, 10)
	return nil
}

func (m *Mem) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	if err := m.enter(ctx, OpHMGet); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		if v, ok := m.hashes[key][f]; ok {
			out[f] = v
		}
	}
	return out, nil
}

func (m *Mem) HDel(ctx context.Context, key string, fields ...string) error {
	if err := m.enter(ctx, OpHDel); err != nil {
		return err
	}
	m.mu.Lock()
	for _, f := range fields {
		delete(m.hashes[key], f)
	}
	m.mu.Unlock()
	return nil
}

// HScan pages through fields in name order; the cursor is the offset of the next page.
func (m *Mem) HScan(ctx context.Context, key string, cursor uint64, count int64) ([]store.Field, uint64, error) {
	if err := m.enter(ctx, OpHScan); err != nil {
		return nil, 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.hashes[key]
	names := make([]string, 0, len(h))
	for f := range h {
		names = append(names, f)
	}
	sort.Strings(names)

	if count <= 0 {
		count = 10
	}
	start := int(cursor)
	if start >= len(names) {
		return nil, 0, nil
	}
	end := start + int(count)
	if end > len(names) {
		end = len(names)
	}
	page := make([]store.Field, 0, end-start)
	for _, n := range names[start:end] {
		page = append(page, store.Field{Name: n, Value: h[n]})
	}
	var next uint64
	if end < len(names) {
		next = uint64(end)
	}
	return page, next, nil
}

func (m *Mem) Close() error {
	m.ready.Store(false)
	return nil
}
