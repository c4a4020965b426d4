// Package systemd reports daemon state to systemd over sd_notify.
//
// fivednined runs as a Type=notify unit: READY=1 is sent once the socket is
// bound and the launcher started, STOPPING=1 when shutdown begins. When the
// unit sets WatchdogSec, a loop pings the watchdog while the server is
// healthy. Outside systemd every call is a no-op.
package systemd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// HealthCheckFunc reports whether the daemon should keep pinging the watchdog.
type HealthCheckFunc func() bool

// Notifier sends sd_notify messages and logs the outcome.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier returns a notifier logging to logger.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger.With(slog.String("component", "systemd"))}
}

// Ready sends READY=1. It returns false when no notify socket is available.
func (n *Notifier) Ready() bool {
	return n.notify(daemon.SdNotifyReady)
}

// Stopping sends STOPPING=1.
func (n *Notifier) Stopping() bool {
	return n.notify(daemon.SdNotifyStopping)
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(status string) bool {
	return n.notify("STATUS=" + status)
}

func (n *Notifier) notify(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed",
			slog.String("state", state),
			slog.String("error", err.Error()),
		)
		return false
	}
	if sent {
		n.logger.Debug("sd_notify sent", slog.String("state", state))
	}
	return sent
}

// StartWatchdog pings the watchdog at half the unit's WatchdogSec until ctx
// is cancelled. A ping is skipped whenever healthy returns false so systemd
// restarts a daemon that has lost its socket. It returns false when the
// watchdog is not enabled.
func (n *Notifier) StartWatchdog(ctx context.Context, healthy HealthCheckFunc) bool {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Debug("watchdog not enabled", slog.String("error", err.Error()))
		return false
	}
	if interval == 0 {
		return false
	}

	ping := interval / 2
	n.logger.Info("starting systemd watchdog",
		slog.Duration("watchdog_interval", interval),
		slog.Duration("ping_interval", ping),
	)
	go n.watchdogLoop(ctx, ping, healthy)
	return true
}

func (n *Notifier) watchdogLoop(ctx context.Context, interval time.Duration, healthy HealthCheckFunc) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !healthy() {
				n.logger.Warn("daemon unhealthy, skipping watchdog ping")
				continue
			}
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}

// UnderSystemd reports whether a notify socket was handed to the process.
func UnderSystemd() bool {
	return os.Getenv("NOTIFY_SOCKET") != ""
}
