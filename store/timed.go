package store

import (
	"context"
	"time"
)

// Timed returns st with every round trip bounded by d. Ready and Close pass
// through unbounded. d <= 0 returns st unchanged.
func Timed(st Store, d time.Duration) Store {
	if d <= 0 {
		return st
	}
	if t, ok := st.(*timed); ok {
		st = t.Store
	}
	return &timed{Store: st, d: d}
}

type timed struct {
	Store
	d time.Duration
}

type getResult struct {
	b  []byte
	ok bool
}

func (t *timed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	r, err := Value(ctx, t.d, func(ctx context.Context) (getResult, error) {
		b, ok, err := t.Store.Get(ctx, key)
		return getResult{b, ok}, err
	})
	return r.b, r.ok, err
}

func (t *timed) Set(ctx context.Context, key string, value []byte, expireAt time.Time) error {
	return WithTimeout(ctx, t.d, func(ctx context.Context) error {
		return t.Store.Set(ctx, key, value, expireAt)
	})
}

func (t *timed) Unlink(ctx context.Context, keys ...string) error {
	return WithTimeout(ctx, t.d, func(ctx context.Context) error {
		return t.Store.Unlink(ctx, keys...)
	})
}

func (t *timed) HSet(ctx context.Context, key, field string, value []byte) error {
	return WithTimeout(ctx, t.d, func(ctx context.Context) error {
		return t.Store.HSet(ctx, key, field, value)
	})
}

func (t *timed) HSetMax(ctx context.Context, key, field string, value int64) error {
	return WithTimeout(ctx, t.d, func(ctx context.Context) error {
		return t.Store.HSetMax(ctx, key, field, value)
	})
}

func (t *timed) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	return Value(ctx, t.d, func(ctx context.Context) (map[string]string, error) {
		return t.Store.HMGet(ctx, key, fields...)
	})
}

func (t *timed) HDel(ctx context.Context, key string, fields ...string) error {
	return WithTimeout(ctx, t.d, func(ctx context.Context) error {
		return t.Store.HDel(ctx, key, fields...)
	})
}

type scanResult struct {
	fields []Field
	next   uint64
}

func (t *timed) HScan(ctx context.Context, key string, cursor uint64, count int64) ([]Field, uint64, error) {
	r, err := Value(ctx, t.d, func(ctx context.Context) (scanResult, error) {
		fields, next, err := t.Store.HScan(ctx, key, cursor, count)
		return scanResult{fields, next}, err
	})
	return r.fields, r.next, err
}

func (t *timed) Ping(ctx context.Context) error {
	return WithTimeout(ctx, t.d, t.Store.Ping)
}
