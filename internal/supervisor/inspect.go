// inspect.go reports on the last launched game using gopsutil.
package supervisor

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ErrNoActiveChild is returned by InspectChild before any game was launched.
var ErrNoActiveChild = errors.New("no game launched")

// ChildStatus is a point-in-time view of a launched game.
type ChildStatus struct {
	PID       int
	Name      string
	Running   bool
	Status    string
	CreatedAt time.Time
	// ExitCode is set once the daemon has reaped the child.
	ExitCode *int
}

// InspectChild reports on the most recently launched game. A reaped child
// is reported as not running with its exit code; otherwise the process
// table is consulted.
func (s *Supervisor) InspectChild(ctx context.Context) (*ChildStatus, error) {
	child, ok := s.ActiveChild()
	if !ok {
		return nil, ErrNoActiveChild
	}

	status := &ChildStatus{PID: child.PID}
	if len(child.Argv) > 0 {
		status.Name = child.Argv[0]
	}

	if code, exited := child.Exited(); exited {
		status.ExitCode = &code
		return status, nil
	}

	p, err := process.NewProcessWithContext(ctx, int32(child.PID))
	if err != nil {
		// Gone from the process table
		return status, nil
	}

	running, err := p.IsRunningWithContext(ctx)
	if err != nil {
		return status, nil
	}
	status.Running = running

	if name, err := p.NameWithContext(ctx); err == nil {
		status.Name = name
	}
	if st, err := p.StatusWithContext(ctx); err == nil {
		status.Status = strings.Join(st, ",")
		// A zombie has exited but not been waited on yet
		if status.Status == process.Zombie {
			status.Running = false
		}
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		status.CreatedAt = time.UnixMilli(created)
	}

	return status, nil
}
