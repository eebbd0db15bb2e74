package tagcache

import "time"

const (
	DefaultKeyPrefix     = "nextjs:"
	DefaultSharedTagsKey = "_sharedTags_"
	DefaultTimeout       = time.Second
	DefaultMemoryTag     = "memory-cache"
	DefaultRetryInterval = 30 * time.Second
	DefaultLocalSize     = 1000
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
