// Package lru is a count-bounded least-recently-used Provider with optional
// per-entry TTLs, built on hashicorp/golang-lru's simplelru core. It is the
// default store of the local fallback handler.
package lru

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type item struct {
	value []byte
	exp   time.Time // zero => no expiry
}

type Provider struct {
	mu      sync.Mutex
	c       *simplelru.LRU[string, item]
	evicted []string // keys dropped by the current call, reported after unlock

	now     func() time.Time
	onEvict func(key string)
}

type Config struct {
	// Size is the maximum number of keys. Required.
	Size int
	// Now is the clock used for TTLs. Default time.Now.
	Now func() time.Time
	// OnEvict is called for every key that leaves the cache, after the
	// provider lock is released, so it may call back into the provider.
	OnEvict func(key string)
}

func New(cfg Config) (*Provider, error) {
	if cfg.Size <= 0 {
		return nil, errors.New("lru: size must be positive")
	}
	p := &Provider{now: cfg.Now, onEvict: cfg.OnEvict}
	if p.now == nil {
		p.now = time.Now
	}
	c, err := simplelru.NewLRU[string, item](cfg.Size, func(key string, _ item) {
		p.evicted = append(p.evicted, key)
	})
	if err != nil {
		return nil, err
	}
	p.c = c
	return p, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	it, ok := p.c.Get(key)
	if ok && !it.exp.IsZero() && !p.now().Before(it.exp) {
		p.c.Remove(key)
		ok = false
	}
	p.unlock()
	if !ok {
		return nil, false, nil
	}
	return it.value, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	it := item{value: value}
	if ttl > 0 {
		it.exp = p.now().Add(ttl)
	}
	p.mu.Lock()
	p.c.Add(key, it)
	p.unlock()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	p.c.Remove(key)
	p.unlock()
	return nil
}

// Len returns the number of keys held, expired or not.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.c.Len()
}

func (p *Provider) Close(_ context.Context) error {
	p.mu.Lock()
	p.c.Purge()
	p.unlock()
	return nil
}

// unlock releases mu and then reports the keys dropped while it was held.
func (p *Provider) unlock() {
	keys := p.evicted
	p.evicted = nil
	p.mu.Unlock()
	if p.onEvict == nil {
		return
	}
	for _, k := range keys {
		p.onEvict(k)
	}
}
