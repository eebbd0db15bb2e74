package store

import (
	"context"
	"errors"
	"io"
	"net"

	goredis "github.com/redis/go-redis/v9"
)

// readinessHook watches every dial and command for connection-level failures.
type readinessHook struct{ c *Client }

var _ goredis.Hook = readinessHook{}

func (h readinessHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil && ctx.Err() == nil {
			h.c.fail(err)
		}
		return conn, err
	}
}

func (h readinessHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		if isConnError(err) {
			h.c.fail(err)
		}
		return err
	}
}

func (h readinessHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		err := next(ctx, cmds)
		if isConnError(err) {
			h.c.fail(err)
		}
		return err
	}
}

// isConnError separates transport failures from replies such as redis.Nil
// or script errors, which leave the connection healthy.
func isConnError(err error) bool {
	if err == nil || errors.Is(err, goredis.Nil) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, goredis.ErrClosed) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
