// systemd_test.go tests notifications against a fake notify socket.
package systemd

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func nopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// listenNotify creates a datagram socket and points NOTIFY_SOCKET at it.
func listenNotify(t *testing.T) *net.UnixConn {
	t.Helper()
	dir, err := os.MkdirTemp("", "sd")
	if err != nil {
		t.Fatalf("MkdirTemp failed: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "notify")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: path, Net: "unixgram"})
	if err != nil {
		t.Fatalf("ListenUnixgram failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	t.Setenv("NOTIFY_SOCKET", path)
	return conn
}

func readState(t *testing.T, conn *net.UnixConn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("no notification received: %v", err)
	}
	return string(buf[:n])
}

func TestNotifier_WithoutSystemd(t *testing.T) {
	t.Setenv("NOTIFY_SOCKET", "")
	n := NewNotifier(nopLogger())

	if n.Ready() {
		t.Error("Ready reported sent without a notify socket")
	}
	if UnderSystemd() {
		t.Error("UnderSystemd should be false")
	}
	if n.StartWatchdog(context.Background(), func() bool { return true }) {
		t.Error("watchdog started without WATCHDOG_USEC")
	}
}

func TestNotifier_States(t *testing.T) {
	conn := listenNotify(t)
	n := NewNotifier(nopLogger())

	if !UnderSystemd() {
		t.Fatal("UnderSystemd should be true")
	}

	tests := []struct {
		send func() bool
		want string
	}{
		{n.Ready, "READY=1"},
		{func() bool { return n.Status("serving, 3 games configured") }, "STATUS=serving, 3 games configured"},
		{n.Stopping, "STOPPING=1"},
	}
	for _, tt := range tests {
		if !tt.send() {
			t.Errorf("%s not sent", tt.want)
			continue
		}
		if got := readState(t, conn); got != tt.want {
			t.Errorf("received %q, want %q", got, tt.want)
		}
	}
}

func TestWatchdog(t *testing.T) {
	conn := listenNotify(t)
	t.Setenv("WATCHDOG_USEC", strconv.Itoa(int((40 * time.Millisecond).Microseconds())))
	t.Setenv("WATCHDOG_PID", strconv.Itoa(os.Getpid()))

	var checks atomic.Int32
	healthy := func() bool {
		// Skip the first ping to exercise the unhealthy path
		return checks.Add(1) > 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := NewNotifier(nopLogger())
	if !n.StartWatchdog(ctx, healthy) {
		t.Fatal("watchdog did not start")
	}

	if got := readState(t, conn); got != "WATCHDOG=1" {
		t.Errorf("received %q, want WATCHDOG=1", got)
	}
	if checks.Load() < 2 {
		t.Errorf("health checked %d times before first ping", checks.Load())
	}
}
