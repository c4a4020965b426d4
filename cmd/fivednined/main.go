// fivednined is the fivednine launch daemon.
//
// It listens on a Unix socket for the selection UI, keeps the list of
// launchable games the UI sends, and starts a game whenever the UI asks
// for one by name. Games are started detached and left running.
//
// Lifecycle:
//  1. Load configuration (--config, required)
//  2. Setup structured JSON logger
//  3. Open the launch journal and start its pruner, if configured
//  4. Bind the socket and start serving
//  5. Start the selection UI launcher
//  6. Notify systemd that the daemon is ready, start the watchdog
//  7. Wait for SIGTERM/SIGINT
//  8. Notify systemd that the daemon is stopping
//  9. Coordinated shutdown with timeout
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/shotos/fivednine/internal/config"
	"github.com/shotos/fivednine/internal/journal"
	"github.com/shotos/fivednine/internal/logging"
	"github.com/shotos/fivednine/internal/server"
	"github.com/shotos/fivednine/internal/shutdown"
	"github.com/shotos/fivednine/internal/supervisor"
	"github.com/shotos/fivednine/internal/systemd"
	"github.com/shotos/fivednine/internal/version"
)

const shutdownTimeout = 10 * time.Second

// bindTimeout bounds how long startup waits for the socket.
const bindTimeout = 5 * time.Second

func main() {
	var (
		configPath  string
		writeConfig string
		showVersion bool
	)

	flags := pflag.NewFlagSet("fivednined", pflag.ContinueOnError)
	flags.StringVarP(&configPath, "config", "c", "", "path to the daemon configuration file (required, packaged installs use "+config.DefaultConfigPath+")")
	flags.StringVar(&writeConfig, "write-config", "", "write a default configuration to this path and exit")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	if showVersion {
		fmt.Println(version.Info("fivednined"))
		return
	}

	if writeConfig != "" {
		if err := config.Save(writeConfig, config.Default()); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote default configuration to %s\n", writeConfig)
		return
	}

	if configPath == "" {
		fmt.Fprintf(os.Stderr, "ERROR: --config is required\n\nUsage of fivednined:\n%s", flags.FlagUsages())
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		// Logger is not configured yet
		fmt.Fprintf(os.Stderr, "ERROR: failed to load configuration from %s: %v\n", configPath, err)
		os.Exit(1)
	}

	logger := logging.SetupLogger(cfg.LogLevel)
	logger.Info("daemon starting",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("config_path", configPath),
		slog.String("socket", cfg.SocketPath),
		slog.Bool("journal", cfg.JournalEnabled()),
		slog.Bool("systemd", systemd.UnderSystemd()),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

// run starts every component, blocks until a signal arrives or the server
// fails, and then shuts everything down in reverse order.
func run(cfg *config.Config, logger *slog.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	notifier := systemd.NewNotifier(logger)
	coordinator := shutdown.NewCoordinator(logger)

	// Stop components on every exit path, including failed startup
	defer func() {
		stop()
		notifier.Stopping()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := coordinator.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}()

	sup := supervisor.New(
		supervisor.NewProcessSpawner(logging.WithComponent(logger, "spawner")),
		logging.WithComponent(logger, "supervisor"),
	)

	if cfg.JournalEnabled() {
		j, err := openJournal(ctx, cfg, logger, coordinator)
		if err != nil {
			return err
		}
		sup.SetRecorder(j)
	}
	coordinator.Register("supervisor", sup)

	srv := server.New(server.Config{
		SocketPath:  cfg.SocketPath,
		SocketMode:  cfg.SocketFileMode(),
		ReadTimeout: cfg.ReadTimeout(),
	}, sup, logger)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe(ctx)
	}()

	select {
	case <-srv.Ready():
	case err := <-serveErr:
		return fmt.Errorf("server: %w", err)
	case <-time.After(bindTimeout):
		return fmt.Errorf("server did not bind %s within %s", cfg.SocketPath, bindTimeout)
	}
	coordinator.Register("server", srv)

	// The UI connects as soon as it starts, so the socket must exist first
	if _, err := sup.StartLauncher(ctx, cfg.LauncherPath, cfg.LauncherConfig); err != nil {
		return err
	}

	notifier.Ready()
	notifier.Status("listening on " + srv.SocketPath())
	notifier.StartWatchdog(ctx, srv.Healthy)
	logger.Info("daemon ready", slog.Int("components", coordinator.Len()))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, starting graceful shutdown")
		return nil
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return errors.New("server stopped unexpectedly")
	}
}

// openJournal opens the launch journal and starts its pruner. Both are
// registered for shutdown.
func openJournal(ctx context.Context, cfg *config.Config, logger *slog.Logger, coordinator *shutdown.Coordinator) (*journal.Journal, error) {
	schedule, err := journal.ParseSchedule(cfg.JournalPruneSchedule)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.JournalPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	coordinator.Register("journal", shutdown.Func(func(context.Context) error {
		return j.Close()
	}))

	pruner := journal.NewPruner(j, schedule, cfg.JournalRetention(), logging.WithComponent(logger, "journal"))
	go pruner.Run(ctx)
	coordinator.Register("journal-pruner", pruner)

	logger.Info("launch journal opened",
		slog.String("path", cfg.JournalPath),
		slog.Duration("retention", cfg.JournalRetention()),
		slog.String("prune_schedule", cfg.JournalPruneSchedule),
	)
	return j, nil
}
