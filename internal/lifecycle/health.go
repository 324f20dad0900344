package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// ErrDraining is reported by the readiness probe once shutdown has begun.
var ErrDraining = errors.New("service is shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// DependencyChecker reports whether the service's dependencies are reachable.
type DependencyChecker interface {
	Healthy(ctx context.Context) error
}

// Probes answers liveness unconditionally and readiness from the dependency
// checks, failing readiness as soon as the service starts draining.
type Probes struct {
	deps     DependencyChecker
	draining atomic.Bool
	log      *slog.Logger
}

func NewProbes(deps DependencyChecker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{deps: deps, log: log}
}

func (p *Probes) Liveness(context.Context) error {
	return nil
}

func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrDraining
	}
	if p.deps == nil {
		return nil
	}

	if err := p.deps.Healthy(ctx); err != nil {
		p.log.Warn("readiness probe failed", slog.Any("error", err))
		return err
	}
	return nil
}

// Drain marks the service as not ready. It is safe to call more than once.
func (p *Probes) Drain() {
	if !p.draining.Swap(true) {
		p.log.Info("readiness switched off for shutdown")
	}
}
