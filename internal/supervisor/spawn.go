// spawn.go starts game processes detached from the daemon.
// Children run in their own process group with stdio on the null device,
// so terminal signals aimed at the daemon do not reach them. A reaper
// goroutine waits on each child so exited games never linger as zombies.
package supervisor

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Tokenize splits a configured command on whitespace. Quoting is not
// supported: an argument cannot contain a space.
func Tokenize(command string) []string {
	return strings.Fields(command)
}

// Child is a spawned process. Exit state is filled in by the reaper.
type Child struct {
	PID       int
	Argv      []string
	StartedAt time.Time

	done     chan struct{}
	mu       sync.Mutex
	exitCode int
	exitErr  error
}

func newChild(pid int, argv []string) *Child {
	return &Child{
		PID:       pid,
		Argv:      argv,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Done is closed once the child has exited and been reaped.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Exited reports the exit code once the child has been reaped.
// The code is -1 for children killed by a signal.
func (c *Child) Exited() (int, bool) {
	select {
	case <-c.done:
	default:
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitCode, true
}

// WaitErr returns the error reported by the reaper, if any.
func (c *Child) WaitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitErr
}

func (c *Child) finish(code int, err error) {
	c.mu.Lock()
	c.exitCode = code
	c.exitErr = err
	c.mu.Unlock()
	close(c.done)
}

// Spawner creates child processes from an argument vector.
type Spawner interface {
	Spawn(argv []string) (*Child, error)
}

// ProcessSpawner starts real OS processes.
type ProcessSpawner struct {
	// Dir is the working directory for children. Empty inherits the daemon's.
	Dir string

	logger *slog.Logger
}

// NewProcessSpawner returns a spawner that logs child exits to logger.
func NewProcessSpawner(logger *slog.Logger) *ProcessSpawner {
	return &ProcessSpawner{logger: logger}
}

// Spawn starts argv[0] with the remaining arguments and returns without
// waiting for it.
func (p *ProcessSpawner) Spawn(argv []string) (*Child, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = p.Dir

	// New process group: the game outlives signals sent to the daemon's group
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// nil stdio means /dev/null
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSpawnFailed, argv[0], err)
	}

	child := newChild(cmd.Process.Pid, argv)
	go p.reap(cmd, child)
	return child, nil
}

// reap waits for the child and records how it ended.
func (p *ProcessSpawner) reap(cmd *exec.Cmd, child *Child) {
	err := cmd.Wait()

	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}
	if _, ok := err.(*exec.ExitError); ok {
		err = nil
	}
	child.finish(code, err)

	p.logger.Info("child exited",
		slog.Int("pid", child.PID),
		slog.String("executable", child.Argv[0]),
		slog.Int("exit_code", code),
		slog.Duration("runtime", time.Since(child.StartedAt)),
	)
}
