// Package provider defines the in-process byte stores behind the local
// fallback handler.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). The handler stores encoded entries and
// rejects anything it cannot decode.
//
// Stores are bounded. Writes may be dropped or older keys evicted at any time;
// the handler treats a missing key as a miss.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal bounded byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. ttl <= 0 means no expiry; stores without per-entry
	// TTLs may ignore it. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
