package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/config"
	asynchook "github.com/unkn0wn-root/tagcache/hooks/async"
	otelhooks "github.com/unkn0wn-root/tagcache/hooks/otel"
	logruslog "github.com/unkn0wn-root/tagcache/log/logrus"
	"github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/provider/bigcache"
	"github.com/unkn0wn-root/tagcache/provider/lru"
	"github.com/unkn0wn-root/tagcache/provider/ristretto"
	"github.com/unkn0wn-root/tagcache/store"
)

// stack is the fully wired cache plus what must be shut down with it.
type stack struct {
	selector *tagcache.Selector
	dialer   tagcache.DialFunc
	hooks    *asynchook.Hooks
}

func (s *stack) Close(ctx context.Context) error {
	err := s.selector.Close(ctx)
	s.hooks.Close()
	return err
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}
	return logger
}

func newProvider(cfg config.LocalConfig, onEvict func(string)) (provider.Provider, error) {
	switch cfg.Provider {
	case "ristretto":
		return ristretto.New(ristretto.ConfigForEntries(cfg.Size))
	case "bigcache":
		return bigcache.New(bigcache.Config{MaxEntriesInWindow: cfg.Size})
	case "lru", "":
		return lru.New(lru.Config{Size: cfg.Size, OnEvict: onEvict})
	default:
		return nil, fmt.Errorf("unknown local provider %q", cfg.Provider)
	}
}

func buildStack(cfg *config.Config, logger *logrus.Logger, meter metric.Meter) (*stack, error) {
	log := logruslog.New(logger)

	counters, err := otelhooks.New(meter)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	hooks := asynchook.New(counters, 1, 1024)

	codec, err := tagcache.NewEntryCodec(cfg.Cache.Codec, cfg.Cache.MaxEntryBytes)
	if err != nil {
		hooks.Close()
		return nil, err
	}

	var local *tagcache.LocalHandler
	p, err := newProvider(cfg.Local, func(key string) { local.Evicted(key) })
	if err != nil {
		hooks.Close()
		return nil, err
	}
	local, err = tagcache.NewLocalHandler(tagcache.LocalOptions{
		Provider: p,
		Codec:    codec,
		Logger:   log,
		Hooks:    hooks,
	})
	if err != nil {
		hooks.Close()
		return nil, err
	}

	dialer := tagcache.RedisDialer(store.Config{
		URL:          cfg.Redis.URL,
		AccessKey:    cfg.Redis.AccessKey,
		PingInterval: cfg.Redis.PingInterval,
	})
	var conn *tagcache.Connector
	if !cfg.Local.Only {
		conn, err = tagcache.NewConnector(tagcache.ConnectorOptions{
			Dial:             dialer,
			SingleConnection: cfg.Redis.SingleConnection,
			DialTimeout:      cfg.Redis.DialTimeout,
			Logger:           log,
			Hooks:            hooks,
		})
		if err != nil {
			hooks.Close()
			return nil, err
		}
	}

	sel, err := tagcache.NewSelector(tagcache.SelectorOptions{
		Connector: conn,
		Local:     local,
		LocalOnly: cfg.Local.Only,
		Remote: tagcache.RemoteOptions{
			KeyPrefix:     cfg.Cache.KeyPrefix,
			SharedTagsKey: cfg.Cache.SharedTagsKey,
			Timeout:       cfg.Cache.Timeout,
			QuerySize:     cfg.Cache.QuerySize,
			Codec:         codec,
		},
		MemoryTag:     cfg.Cache.MemoryTag,
		RetryInterval: cfg.Cache.RetryInterval,
		Logger:        log,
		Hooks:         hooks,
	})
	if err != nil {
		hooks.Close()
		return nil, err
	}
	return &stack{selector: sel, dialer: dialer, hooks: hooks}, nil
}
