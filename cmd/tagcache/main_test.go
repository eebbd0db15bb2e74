package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/unkn0wn-root/tagcache/config"
)

func localOnlyStack(t *testing.T, provider string) *stack {
	t.Helper()
	cfg := &config.Config{
		Cache: config.CacheConfig{Codec: "json", MemoryTag: "memory-cache", QuerySize: 100},
		Local: config.LocalConfig{Only: true, Provider: provider, Size: 16},
		Log:   config.LogConfig{Level: "debug", Format: "text"},
	}
	logger, _ := test.NewNullLogger()
	st, err := buildStack(cfg, logger, noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("buildStack: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func run(ctx context.Context, st *stack, args []string, out *bytes.Buffer) error {
	root := newRootCmd(func(bool) (*stack, error) { return st, nil })
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(io.Discard)
	return root.ExecuteContext(ctx)
}

func TestRunSetGetRevalidate(t *testing.T) {
	st := localOnlyStack(t, "lru")
	ctx := context.Background()

	var out bytes.Buffer
	if err := run(ctx, st, []string{"set", "--tags", "posts, home", "--ttl", "1h", "page/a", "hello"}, &out); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := run(ctx, st, []string{"get", "page/a"}, &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out.String(), `"body": "hello"`) {
		t.Fatalf("get output = %s", out.String())
	}

	if err := run(ctx, st, []string{"revalidate", "posts"}, &out); err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if err := run(ctx, st, []string{"get", "page/a"}, &out); err == nil {
		t.Fatalf("page/a should be gone after revalidation")
	}
}

func TestRunUsage(t *testing.T) {
	st := localOnlyStack(t, "lru")
	for _, args := range [][]string{{}, {"get"}, {"delete"}, {"revalidate"}, {"set", "only-key"}, {"set", "--bogus", "k", "v"}, {"frobnicate"}} {
		if err := run(context.Background(), st, args, &bytes.Buffer{}); !errors.Is(err, errUsage) {
			t.Errorf("%v: err = %v", args, err)
		}
	}
}

func TestUsageErrorsNeverOpenTheStack(t *testing.T) {
	opened := false
	root := newRootCmd(func(bool) (*stack, error) {
		opened = true
		return nil, errors.New("unreachable")
	})
	root.SetArgs([]string{"delete"})
	root.SetErr(io.Discard)
	if err := root.Execute(); !errors.Is(err, errUsage) {
		t.Fatalf("err = %v", err)
	}
	if opened {
		t.Fatalf("stack opened for a usage error")
	}
}

func TestBuildStackProviders(t *testing.T) {
	for _, p := range []string{"lru", "ristretto", "bigcache"} {
		localOnlyStack(t, p)
	}
}

func TestSplitTagsAndFetchEntry(t *testing.T) {
	if got := splitTags(" a, ,b,"); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("splitTags = %v", got)
	}
	if got := splitTags(""); got == nil || len(got) != 0 {
		t.Fatalf("empty tags should be an empty slice, got %#v", got)
	}

	now := time.Unix(1_000, 0)
	e := fetchEntry("k", "b", nil, time.Minute, now)
	if e.Lifespan == nil || e.Lifespan.ExpireAt != 1_060 || e.LastModified != 1_000_000 {
		t.Fatalf("entry = %+v lifespan = %+v", e, e.Lifespan)
	}
	if fetchEntry("k", "b", nil, 0, now).Lifespan != nil {
		t.Fatalf("ttl 0 should mean no lifespan")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	if l := newLogger(config.LogConfig{Level: "warn", Format: "text"}); l.GetLevel() != logrus.WarnLevel {
		t.Fatalf("level = %v", l.GetLevel())
	}
	if l := newLogger(config.LogConfig{Level: "nonsense"}); l.GetLevel() != logrus.InfoLevel {
		t.Fatalf("bad level should default to info, got %v", l.GetLevel())
	}
}
