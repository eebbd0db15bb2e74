package util

// RawKey is the store key holding the encoded entry for a cache key.
func RawKey(prefix, key string) string { return prefix + key }

// RawKeys maps cache keys to their store keys.
func RawKeys(prefix string, keys []string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = prefix + k
	}
	return out
}

// LedgerKey names the hash mapping cache keys to their tag sets.
func LedgerKey(prefix, sharedTagsKey string) string { return prefix + sharedTagsKey }

// ClockKey names the hash mapping implicit tags to their last revalidation time.
func ClockKey(prefix string) string { return prefix + "__revalidated_tags__" }
