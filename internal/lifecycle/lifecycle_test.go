package lifecycle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type depsFunc func(ctx context.Context) error

func (f depsFunc) Healthy(ctx context.Context) error { return f(ctx) }

func TestProbes(t *testing.T) {
	down := errors.New("database: connection refused")
	var healthy atomic.Bool
	healthy.Store(true)

	p := NewProbes(depsFunc(func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return down
	}), testLogger())
	ctx := context.Background()

	assert.NoError(t, p.Liveness(ctx))
	assert.NoError(t, p.Readiness(ctx))

	healthy.Store(false)
	assert.ErrorIs(t, p.Readiness(ctx), down)
	assert.NoError(t, p.Liveness(ctx))

	healthy.Store(true)
	p.Drain()
	p.Drain()
	assert.ErrorIs(t, p.Readiness(ctx), ErrDraining)
}

func TestShutdownRunsEveryHook(t *testing.T) {
	s := NewShutdown(testLogger())

	var ran atomic.Int32
	boom := errors.New("boom")

	s.Register("http", func(context.Context) error { ran.Add(1); return nil })
	s.Register("worker", func(context.Context) error { ran.Add(1); return boom })
	s.Register("redis", func(context.Context) error { ran.Add(1); return nil })
	s.Register("nil", nil)

	err := s.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "worker")
	assert.Equal(t, int32(3), ran.Load())
}
