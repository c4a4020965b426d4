// Package shutdown stops daemon components in reverse start order.
//
//	coord := shutdown.NewCoordinator(logger)
//	coord.Register("journal", j)
//	coord.Register("server", srv)
//	coord.Shutdown(ctx) // server first, then journal
package shutdown

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Shutdowner is implemented by components that need an orderly stop.
// Shutdown should give up and return ctx.Err() once ctx is done.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// Func adapts a plain function to Shutdowner.
type Func func(ctx context.Context) error

// Shutdown calls f.
func (f Func) Shutdown(ctx context.Context) error {
	return f(ctx)
}

type component struct {
	name string
	s    Shutdowner
}

// Coordinator runs registered shutdowns last-in, first-out.
type Coordinator struct {
	mu         sync.Mutex
	components []component
	done       bool
	logger     *slog.Logger
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	return &Coordinator{
		logger: logger.With(slog.String("component", "shutdown")),
	}
}

// Register adds s under name. Components registered later depend on
// earlier ones and are stopped first.
func (c *Coordinator) Register(name string, s Shutdowner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components = append(c.components, component{name: name, s: s})
}

// Shutdown stops every component in reverse registration order. A failing
// component does not stop the rest. Once ctx expires the remaining
// components are skipped. The first error is returned. Calling Shutdown
// again is a no-op.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return nil
	}
	c.done = true
	components := c.components
	c.mu.Unlock()

	c.logger.Info("shutting down", slog.Int("components", len(components)))

	var firstErr error
	for i := len(components) - 1; i >= 0; i-- {
		comp := components[i]

		if err := ctx.Err(); err != nil {
			c.logger.Error("shutdown deadline exceeded",
				slog.String("skipped_from", comp.name),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("shutdown deadline exceeded at %s: %w", comp.name, err)
			}
			return firstErr
		}

		start := time.Now()
		err := comp.s.Shutdown(ctx)
		if err != nil {
			c.logger.Error("component shutdown failed",
				slog.String("handler", comp.name),
				slog.Duration("duration", time.Since(start)),
				slog.String("error", err.Error()),
			)
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to shut down %s: %w", comp.name, err)
			}
			continue
		}
		c.logger.Info("component stopped",
			slog.String("handler", comp.name),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return firstErr
}

// Len returns the number of registered components.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.components)
}
