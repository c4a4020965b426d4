// Package supervisor owns the game registry and turns Launch requests into
// running processes.
//
// A Supervisor is created once at daemon start and driven by the single
// connection loop: Configure messages populate the registry, Launch messages
// look a name up and spawn its command. Launched games are fire-and-forget;
// only the most recent child is remembered for inspection.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shotos/fivednine/internal/journal"
	"github.com/shotos/fivednine/internal/protocol"
)

// Recorder persists launch attempts. *journal.Journal implements it.
type Recorder interface {
	Append(r *journal.Record) error
}

// Supervisor applies Configure and Launch messages.
type Supervisor struct {
	registry *Registry
	spawner  Spawner
	recorder Recorder
	logger   *slog.Logger

	mu     sync.Mutex
	active *Child
}

// New creates a supervisor with an empty registry.
func New(spawner Spawner, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		registry: NewRegistry(),
		spawner:  spawner,
		logger:   logger,
	}
}

// SetRecorder enables the launch journal.
func (s *Supervisor) SetRecorder(r Recorder) {
	s.recorder = r
}

// Registry returns the supervisor's registry.
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// Dispatch routes a decoded message to its handler.
func (s *Supervisor) Dispatch(ctx context.Context, msg protocol.Message) error {
	switch m := msg.(type) {
	case *protocol.ConfigureMessage:
		return s.HandleConfigure(ctx, m)
	case *protocol.LaunchMessage:
		return s.HandleLaunch(ctx, m)
	default:
		return fmt.Errorf("%w: %T", ErrInvalidMessage, msg)
	}
}

// HandleConfigure adds the message's entries to the registry. Names that are
// already configured are skipped with a warning; the rest of the batch is
// still applied.
func (s *Supervisor) HandleConfigure(ctx context.Context, msg *protocol.ConfigureMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: nil configure message", ErrInvalidMessage)
	}

	entries := msg.Valid()
	s.logger.InfoContext(ctx, "received configure message",
		slog.Int("count", len(entries)),
	)

	added := 0
	for _, e := range entries {
		if err := s.registry.Add(e.Name, e.Command); err != nil {
			s.logger.WarnContext(ctx, "game already configured, skipping",
				slog.String("name", e.Name),
			)
			continue
		}
		added++
		s.logger.InfoContext(ctx, "game configured",
			slog.String("name", e.Name),
			slog.String("command", e.Command),
		)
	}

	s.logger.InfoContext(ctx, "configure applied",
		slog.Int("added", added),
		slog.Int("skipped", len(entries)-added),
		slog.Int("registry_size", s.registry.Len()),
	)
	return nil
}

// HandleLaunch starts the game configured under msg.Name. It returns
// ErrUnknownGame, ErrEmptyCommand or ErrSpawnFailed on failure.
func (s *Supervisor) HandleLaunch(ctx context.Context, msg *protocol.LaunchMessage) error {
	if msg == nil {
		return fmt.Errorf("%w: nil launch message", ErrInvalidMessage)
	}

	record := &journal.Record{Name: msg.Name, LaunchedAt: time.Now()}
	child, err := s.launch(ctx, msg.Name, record)
	if err != nil {
		record.Error = err.Error()
		s.logger.ErrorContext(ctx, "launch failed",
			slog.String("name", msg.Name),
			slog.String("error", err.Error()),
		)
	} else {
		record.PID = child.PID
		s.logger.InfoContext(ctx, "game launched",
			slog.String("name", msg.Name),
			slog.Int("pid", child.PID),
			slog.String("executable", child.Argv[0]),
			slog.Int("args", len(child.Argv)-1),
		)
	}

	s.record(ctx, record)
	return err
}

func (s *Supervisor) launch(ctx context.Context, name string, record *journal.Record) (*Child, error) {
	command, ok := s.registry.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGame, name)
	}
	record.Command = command

	argv := Tokenize(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCommand, name)
	}

	if prev, ok := s.ActiveChild(); ok {
		if status, err := s.InspectChild(ctx); err == nil && status.Running {
			s.logger.WarnContext(ctx, "previous game still running",
				slog.Int("pid", prev.PID),
				slog.String("process", status.Name),
			)
		}
	}

	child, err := s.spawner.Spawn(argv)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active = child
	s.mu.Unlock()
	return child, nil
}

func (s *Supervisor) record(ctx context.Context, r *journal.Record) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Append(r); err != nil {
		s.logger.WarnContext(ctx, "failed to journal launch",
			slog.String("name", r.Name),
			slog.String("error", err.Error()),
		)
	}
}

// ActiveChild returns the most recently spawned game.
func (s *Supervisor) ActiveChild() (*Child, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active, s.active != nil
}

// StartLauncher starts the paired selection UI as
// "<path> --config <configPath>". The launcher is not remembered as the
// active game.
func (s *Supervisor) StartLauncher(ctx context.Context, path, configPath string) (*Child, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: launcher path", ErrEmptyCommand)
	}

	child, err := s.spawner.Spawn([]string{path, "--config", configPath})
	if err != nil {
		return nil, fmt.Errorf("start launcher: %w", err)
	}

	s.logger.InfoContext(ctx, "launcher started",
		slog.String("path", path),
		slog.String("config", configPath),
		slog.Int("pid", child.PID),
	)
	return child, nil
}

// Shutdown logs the state of the last launched game. Games are never killed
// by the daemon.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	child, ok := s.ActiveChild()
	if !ok {
		return nil
	}

	if code, exited := child.Exited(); exited {
		attrs := []any{slog.Int("pid", child.PID), slog.Int("exit_code", code)}
		if err := child.WaitErr(); err != nil {
			attrs = append(attrs, slog.String("wait_error", err.Error()))
		}
		s.logger.InfoContext(ctx, "last game already exited", attrs...)
		return nil
	}

	status, err := s.InspectChild(ctx)
	if err != nil {
		return nil
	}
	s.logger.InfoContext(ctx, "leaving last game running",
		slog.Int("pid", status.PID),
		slog.String("process", status.Name),
		slog.Bool("running", status.Running),
	)
	return nil
}
