package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

var ErrNilClient = errors.New("store: nil redis client")

// hsetMax keeps the stored integer monotonic: the field is written only when
// absent or smaller than the candidate.
var hsetMax = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if cur and tonumber(cur) and tonumber(cur) >= tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// Config describes how to obtain the redis connection.
type Config struct {
	// URL is a redis:// or rediss:// connection URL. Ignored when Client is set.
	URL string
	// AccessKey, when set, overrides the password from URL.
	AccessKey string
	// PingInterval > 0 starts a background PING loop that keeps Ready current.
	PingInterval time.Duration

	// Client is an externally constructed client.
	Client goredis.UniversalClient
	// CloseClient: set true only if this Client exclusively owns Client.
	// Clients dialed from URL are always owned.
	CloseClient bool
}

// Client is a Store backed by go-redis.
type Client struct {
	rdb         goredis.UniversalClient
	closeClient bool

	ready atomic.Bool

	mu      sync.Mutex
	onError []func(error)

	stopCh    chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

var _ Store = (*Client)(nil)

// New builds a Client without touching the network. The client is not ready
// until Ping succeeds.
func New(cfg Config) (*Client, error) {
	rdb := cfg.Client
	owned := cfg.CloseClient
	if rdb == nil {
		if cfg.URL == "" {
			return nil, ErrNilClient
		}
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("store: parse url: %w", err)
		}
		if cfg.AccessKey != "" {
			opts.Password = cfg.AccessKey
		}
		rdb = goredis.NewClient(opts)
		owned = true
	}

	c := &Client{rdb: rdb, closeClient: owned}
	rdb.AddHook(readinessHook{c: c})

	if cfg.PingInterval > 0 {
		c.stopCh = make(chan struct{})
		c.wg.Add(1)
		go c.pingLoop(cfg.PingInterval)
	}
	return c, nil
}

// Connect builds a Client and verifies the connection. On failure the client
// is destroyed and the error returned.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	c, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return c, nil
}

// OnError registers fn to be called on connection-level errors.
// fn runs on the goroutine that observed the error and must not block.
func (c *Client) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = append(c.onError, fn)
	c.mu.Unlock()
}

// Redis exposes the underlying client for callers that need commands outside Store.
func (c *Client) Redis() goredis.UniversalClient { return c.rdb }

func (c *Client) Ready() bool { return c.ready.Load() }

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		c.ready.Store(false)
		return err
	}
	c.ready.Store(true)
	return nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set writes value with SET ... EXAT when expireAt is non-zero. Value and
// expiry land in one command, so pooled connections cannot reorder them.
func (c *Client) Set(ctx context.Context, key string, value []byte, expireAt time.Time) error {
	if expireAt.IsZero() {
		return c.rdb.Set(ctx, key, value, 0).Err()
	}
	return c.rdb.SetArgs(ctx, key, value, goredis.SetArgs{ExpireAt: expireAt}).Err()
}

func (c *Client) Unlink(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Unlink(ctx, keys...).Err()
}

func (c *Client) HSet(ctx context.Context, key, field string, value []byte) error {
	return c.rdb.HSet(ctx, key, field, value).Err()
}

func (c *Client) HSetMax(ctx context.Context, key, field string, value int64) error {
	return hsetMax.Run(ctx, c.rdb, []string{key}, field, value).Err()
}

func (c *Client) HMGet(ctx context.Context, key string, fields ...string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	if len(fields) == 0 {
		return out, nil
	}
	vals, err := c.rdb.HMGet(ctx, key, fields...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range vals {
		switch vv := v.(type) {
		case nil:
		case string:
			out[fields[i]] = vv
		case []byte:
			out[fields[i]] = string(vv)
		case int64:
			out[fields[i]] = strconv.FormatInt(vv, 10)
		default:
			out[fields[i]] = fmt.Sprint(vv)
		}
	}
	return out, nil
}

func (c *Client) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return c.rdb.HDel(ctx, key, fields...).Err()
}

func (c *Client) HScan(ctx context.Context, key string, cursor uint64, count int64) ([]Field, uint64, error) {
	kv, next, err := c.rdb.HScan(ctx, key, cursor, "", count).Result()
	if err != nil {
		return nil, 0, err
	}
	if len(kv)%2 != 0 {
		return nil, 0, fmt.Errorf("store: hscan %s: odd reply length %d", key, len(kv))
	}
	page := make([]Field, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		page = append(page, Field{Name: kv[i], Value: kv[i+1]})
	}
	return page, next, nil
}

// Close stops the ping loop and releases the redis client when owned.
// Safe to call multiple times; repeated calls become no-ops.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if c.stopCh != nil {
			close(c.stopCh)
			c.wg.Wait()
		}
		c.ready.Store(false)
		if c.closeClient {
			if cerr := c.rdb.Close(); cerr != nil && !errors.Is(cerr, goredis.ErrClosed) {
				err = cerr
			}
		}
	})
	return err
}

func (c *Client) pingLoop(every time.Duration) {
	defer c.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			_ = c.Ping(ctx)
			cancel()
		case <-c.stopCh:
			return
		}
	}
}

// fail marks the client unusable and notifies OnError subscribers.
func (c *Client) fail(err error) {
	c.ready.Store(false)
	c.mu.Lock()
	fns := slices.Clone(c.onError)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(err)
	}
}
