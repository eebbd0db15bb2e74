package tagstore

import (
	"context"
	"strconv"
	"time"

	"github.com/unkn0wn-root/tagcache/store"
)

// Clock records when each implicit tag was last revalidated, in epoch
// milliseconds. Recorded times never decrease, even when writers' clocks disagree.
type Clock struct {
	st  store.Store
	key string
}

func NewClock(st store.Store, key string) *Clock {
	return &Clock{st: st, key: key}
}

// Key returns the hash key the clock lives under.
func (c *Clock) Key() string { return c.key }

// Mark records at as the revalidation time of tag unless a later time is
// already recorded.
func (c *Clock) Mark(ctx context.Context, tag string, at time.Time) error {
	return c.st.HSetMax(ctx, c.key, tag, at.UnixMilli())
}

// Times returns the recorded revalidation times for tags. Tags never
// revalidated are absent. Values that are not integers are treated as absent.
func (c *Clock) Times(ctx context.Context, tags []string) (map[string]int64, error) {
	out := make(map[string]int64, len(tags))
	if len(tags) == 0 {
		return out, nil
	}
	raw, err := c.st.HMGet(ctx, c.key, tags...)
	if err != nil {
		return nil, err
	}
	for tag, s := range raw {
		ms, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil {
			continue
		}
		out[tag] = ms
	}
	return out, nil
}
