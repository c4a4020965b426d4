// shutdown_test.go tests ordering, error collection and deadlines.
package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCoordinator_ReverseOrder(t *testing.T) {
	c := NewCoordinator(nopLogger())
	var order []string
	for _, name := range []string{"journal", "supervisor", "server"} {
		c.Register(name, Func(func(context.Context) error {
			order = append(order, name)
			return nil
		}))
	}

	if c.Len() != 3 {
		t.Fatalf("Len = %d, want 3", c.Len())
	}
	if err := c.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	want := []string{"server", "supervisor", "journal"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}

	// Second call does nothing
	order = nil
	c.Shutdown(context.Background())
	if len(order) != 0 {
		t.Errorf("components stopped twice: %v", order)
	}
}

func TestCoordinator_ContinuesAfterError(t *testing.T) {
	c := NewCoordinator(nopLogger())
	errJournal := errors.New("journal busy")
	stopped := false

	c.Register("first", Func(func(context.Context) error {
		stopped = true
		return nil
	}))
	c.Register("journal", Func(func(context.Context) error { return errJournal }))

	err := c.Shutdown(context.Background())
	if !errors.Is(err, errJournal) {
		t.Errorf("expected journal error, got %v", err)
	}
	if !stopped {
		t.Error("component after failure was not stopped")
	}
}

func TestCoordinator_Deadline(t *testing.T) {
	c := NewCoordinator(nopLogger())
	reached := false
	c.Register("never", Func(func(context.Context) error {
		reached = true
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.Shutdown(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if reached {
		t.Error("component ran after deadline")
	}
}
