package tagcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/tagcache/store"
)

// ErrConnectorClosed is returned by GetOrCreate after Close.
var ErrConnectorClosed = errors.New("tagcache: connector is closed")

// DialFunc opens a ready store. onError must be invoked for connection-level
// errors observed after the dial returns.
type DialFunc func(ctx context.Context, onError func(error)) (store.Store, error)

// RedisDialer dials a go-redis backed store and verifies it with a PING.
func RedisDialer(cfg store.Config) DialFunc {
	return func(ctx context.Context, onError func(error)) (store.Store, error) {
		c, err := store.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		c.OnError(onError)
		return c, nil
	}
}

// ConnectorOptions configures a Connector.
type ConnectorOptions struct {
	// Dial opens a new connection. Required.
	Dial DialFunc
	// SingleConnection shares one connection across every GetOrCreate until
	// it reports an error. When false each call dials its own connection.
	SingleConnection bool
	// DialTimeout bounds one dial. Default 5s.
	DialTimeout time.Duration

	Logger Logger
	Hooks  Hooks
}

const defaultDialTimeout = 5 * time.Second

// Connector owns the process-wide store connection. Handlers borrow what it
// hands out and never close it.
//
// Concurrent first calls share one in-flight dial. A connection that reports
// an error is dropped, so the next call dials from scratch; every dropped
// connection is closed once any replacement is up. A connection that errors
// before its dial returns is never handed out.
type Connector struct {
	dial        DialFunc
	single      bool
	dialTimeout time.Duration
	log         Logger
	hooks       Hooks

	sf singleflight.Group

	mu      sync.Mutex
	cur     store.Store
	curGen  uint64
	gen     uint64
	live    map[store.Store]uint64
	dialing map[uint64]error
	retired []store.Store
	closed  bool
}

func NewConnector(opts ConnectorOptions) (*Connector, error) {
	if opts.Dial == nil {
		return nil, fmt.Errorf("tagcache: dial func is required")
	}
	c := &Connector{
		dial:        opts.Dial,
		single:      opts.SingleConnection,
		dialTimeout: coalesce(opts.DialTimeout, defaultDialTimeout),
		live:        make(map[store.Store]uint64),
		dialing:     make(map[uint64]error),
	}
	c.log = named(coalesce[Logger](opts.Logger, NopLogger{}), "connector")
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	return c, nil
}

// GetOrCreate returns the shared connection, dialing it if needed. ctx only
// bounds the caller's wait: an in-flight dial keeps going for other callers.
func (c *Connector) GetOrCreate(ctx context.Context) (store.Store, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrConnectorClosed
	}
	if c.single && c.cur != nil {
		st := c.cur
		c.mu.Unlock()
		return st, nil
	}
	c.mu.Unlock()

	if !c.single {
		return c.connect()
	}

	ch := c.sf.DoChan("connect", func() (any, error) {
		return c.connect()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(store.Store), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connector) connect() (store.Store, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.dialing[gen] = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.dialTimeout)
	defer cancel()
	st, err := c.dial(ctx, func(err error) { c.invalidate(gen, err) })
	if err != nil {
		c.mu.Lock()
		delete(c.dialing, gen)
		c.mu.Unlock()
		c.log.Warn("dial failed", Fields{"err": err})
		return nil, err
	}

	c.mu.Lock()
	lost := c.dialing[gen]
	delete(c.dialing, gen)
	if c.closed {
		c.mu.Unlock()
		_ = st.Close()
		return nil, ErrConnectorClosed
	}
	if lost != nil || !st.Ready() {
		c.mu.Unlock()
		_ = st.Close()
		if lost == nil {
			lost = store.ErrNotReady
		}
		c.log.Warn("connection lost while dialing", Fields{"gen": gen, "err": lost})
		return nil, fmt.Errorf("tagcache: connection lost while dialing: %w", lost)
	}
	c.live[st] = gen
	if c.single {
		c.cur, c.curGen = st, gen
	}
	retired := c.retired
	c.retired = nil
	c.mu.Unlock()

	for _, old := range retired {
		_ = old.Close()
	}
	c.log.Info("connected", Fields{"gen": gen})
	return st, nil
}

// invalidate drops the connection dialed as gen. Stale generations are ignored;
// a generation still dialing is remembered and refused once the dial returns.
func (c *Connector) invalidate(gen uint64, err error) {
	if err == nil {
		err = store.ErrNotReady
	}
	c.mu.Lock()
	if prev, ok := c.dialing[gen]; ok {
		if prev == nil {
			c.dialing[gen] = err
		}
		c.mu.Unlock()
		return
	}
	var dropped store.Store
	for st, g := range c.live {
		if g == gen {
			dropped = st
			break
		}
	}
	if dropped == nil {
		c.mu.Unlock()
		return
	}
	delete(c.live, dropped)
	if c.single && c.curGen == gen {
		c.cur = nil
	}
	c.retired = append(c.retired, dropped)
	c.mu.Unlock()

	c.hooks.ConnectionReset(err)
	c.log.Warn("connection error, will reconnect", Fields{"gen": gen, "err": err})
}

// Valid reports whether st is a connection this connector still trusts.
func (c *Connector) Valid(st store.Store) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.live[st]
	return ok
}

// Close closes every connection handed out. Later GetOrCreate calls fail.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	all := c.retired
	for st := range c.live {
		all = append(all, st)
	}
	c.live, c.retired, c.cur = map[store.Store]uint64{}, nil, nil
	c.mu.Unlock()

	var errs []error
	for _, st := range all {
		if err := st.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
