// Package store is the thin adapter between the cache handlers and the shared
// key-value store. It exposes only the primitives the handlers need: string
// get/set-with-absolute-expiry/unlink and hash field operations with cursor scans.
//
// Implementations must be safe for concurrent use. Values are byte-for-byte
// transparent: Get returns exactly what Set stored.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotReady is returned when an operation is attempted while the
	// connection is down or not yet established.
	ErrNotReady = errors.New("store: client is not ready or connection is lost")

	// ErrTimeout is returned when an operation does not complete within its bound.
	ErrTimeout = errors.New("store: operation timed out")
)

// Field is one hash field returned by a scan page.
type Field struct {
	Name  string
	Value string
}

// Store is the subset of a networked key-value store used by the cache.
type Store interface {
	// Ready reports whether the connection is usable right now.
	Ready() bool

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value. A non-zero expireAt sets an absolute expiry in the
	// same command; zero means no expiry.
	Set(ctx context.Context, key string, value []byte, expireAt time.Time) error
	// Unlink removes keys (non-blocking delete where supported).
	Unlink(ctx context.Context, keys ...string) error

	// HSet writes one hash field.
	HSet(ctx context.Context, key, field string, value []byte) error
	// HSetMax writes field only if value is greater than the stored integer
	// (or the field is absent). Stored values never decrease.
	HSetMax(ctx context.Context, key, field string, value int64) error
	// HMGet returns the present fields among fields; missing ones are absent from the map.
	HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error)
	// HDel removes hash fields.
	HDel(ctx context.Context, key string, fields ...string) error
	// HScan returns one page of fields starting at cursor. A returned cursor
	// of zero means the scan is complete.
	HScan(ctx context.Context, key string, cursor uint64, count int64) ([]Field, uint64, error)

	// Ping checks the connection and updates readiness.
	Ping(ctx context.Context) error
	// Close releases resources. Safe to call more than once.
	Close() error
}
