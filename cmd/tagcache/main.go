// Command tagcache inspects and maintains a shared tag cache from the shell.
//
//	tagcache [--metrics] get <key> [implicit-tag...]
//	tagcache [--metrics] set [--tags a,b] [--ttl 1h] <key> <body>
//	tagcache [--metrics] delete <key>
//	tagcache [--metrics] revalidate <tag>...
//	tagcache ping
//
// Settings come from the environment (see package config).
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/config"
)

var errUsage = errors.New("usage: tagcache [--metrics] get|set|delete|revalidate|ping ...")

// opener builds the cache stack once flags are parsed.
type opener func(metrics bool) (*stack, error)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tagcache:", err)
		os.Exit(2)
	}
	logger := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		st *stack
		mp *sdkmetric.MeterProvider
	)
	open := func(metrics bool) (*stack, error) {
		var meter metric.Meter = noop.NewMeterProvider().Meter("tagcache")
		if metrics {
			exp, err := stdoutmetric.New(stdoutmetric.WithPrettyPrint())
			if err != nil {
				return nil, fmt.Errorf("metrics exporter: %w", err)
			}
			mp = sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
			meter = mp.Meter("github.com/unkn0wn-root/tagcache")
		}
		built, err := buildStack(cfg, logger, meter)
		st = built
		return built, err
	}

	err = newRootCmd(open).ExecuteContext(ctx)
	shutdown(logger, st, mp)

	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func shutdown(logger *logrus.Logger, st *stack, mp *sdkmetric.MeterProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if st != nil {
		if err := st.Close(ctx); err != nil {
			logger.WithError(err).Warn("close")
		}
	}
	if mp != nil {
		if err := mp.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("metrics shutdown")
		}
	}
}

// usage marks argument errors so main can exit with status 2.
func usage(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

func newRootCmd(open opener) *cobra.Command {
	var metrics bool
	root := &cobra.Command{
		Use:           "tagcache",
		Short:         "Inspect and maintain a shared tag cache",
		Args:          usage(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return errUsage
		},
	}
	root.PersistentFlags().BoolVar(&metrics, "metrics", false, "print cache counters to stdout on exit")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	// withStack opens the stack lazily so usage errors never dial.
	withStack := func(fn func(cmd *cobra.Command, st *stack, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			st, err := open(metrics)
			if err != nil {
				return fmt.Errorf("build cache: %w", err)
			}
			return fn(cmd, st, args)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "get <key> [implicit-tag...]",
			Short: "Print a cached entry as JSON",
			Args:  usage(cobra.MinimumNArgs(1)),
			RunE: withStack(func(cmd *cobra.Command, st *stack, args []string) error {
				e, ok := st.selector.Get(cmd.Context(), args[0], tagcache.Meta{ImplicitTags: args[1:]})
				if !ok {
					return fmt.Errorf("%q: not cached", args[0])
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(e)
			}),
		},
		newSetCmd(withStack),
		&cobra.Command{
			Use:   "delete <key>",
			Short: "Remove one key",
			Args:  usage(cobra.ExactArgs(1)),
			RunE: withStack(func(cmd *cobra.Command, st *stack, args []string) error {
				st.selector.Delete(cmd.Context(), args[0])
				return nil
			}),
		},
		&cobra.Command{
			Use:   "revalidate <tag>...",
			Short: "Invalidate every entry carrying one of the tags",
			Args:  usage(cobra.MinimumNArgs(1)),
			RunE: withStack(func(cmd *cobra.Command, st *stack, args []string) error {
				st.selector.RevalidateTag(cmd.Context(), args...)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "ping",
			Short: "Dial the shared store and verify it answers",
			Args:  usage(cobra.NoArgs),
			RunE: withStack(func(cmd *cobra.Command, st *stack, _ []string) error {
				conn, err := st.dialer(cmd.Context(), func(error) {})
				if err != nil {
					return fmt.Errorf("ping: %w", err)
				}
				defer conn.Close()
				fmt.Fprintln(cmd.OutOrStdout(), "PONG")
				return nil
			}),
		},
	)
	return root
}

func newSetCmd(withStack func(func(*cobra.Command, *stack, []string) error) func(*cobra.Command, []string) error) *cobra.Command {
	var (
		tags string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "set [--tags a,b] [--ttl 1h] <key> <body>",
		Short: "Store body as a cached fetch response",
		Args:  usage(cobra.ExactArgs(2)),
		RunE: withStack(func(cmd *cobra.Command, st *stack, args []string) error {
			e := fetchEntry(args[0], args[1], splitTags(tags), ttl, time.Now())
			st.selector.Set(cmd.Context(), args[0], e, tagcache.Meta{})
			return nil
		}),
	}
	cmd.Flags().StringVar(&tags, "tags", "", "comma separated tags")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire after this long (0 = never)")
	return cmd
}

func splitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// fetchEntry wraps body as a cached fetch response, the simplest kind to
// write by hand.
func fetchEntry(key, body string, tags []string, ttl time.Duration, now time.Time) *tagcache.Entry {
	e := &tagcache.Entry{
		Value: &tagcache.Value{
			Kind: tagcache.KindFetch,
			Data: &tagcache.FetchData{Body: body, Status: 200, URL: key},
		},
		Tags:         tags,
		LastModified: now.UnixMilli(),
	}
	if ttl > 0 {
		e.Value.Revalidate = int(ttl / time.Second)
		e.Lifespan = &tagcache.Lifespan{
			LastModifiedAt: now.Unix(),
			ExpireAt:       now.Add(ttl).Unix(),
			ExpireAge:      int64(ttl / time.Second),
			Revalidate:     int64(ttl / time.Second),
		}
	}
	return e
}
