// Package server owns the daemon's listening socket and the connection loop.
//
// The server accepts one client at a time and serves it until the client
// disconnects. Each message is read in two steps: the fixed-size header is
// read and validated first, then the rest of the message is read once its
// length is known. Transport and header errors close the connection;
// decode and dispatch errors are logged and the connection keeps going.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shotos/fivednine/internal/protocol"
	"github.com/shotos/fivednine/internal/transfer"
)

// ErrBind is returned when the listening socket cannot be created.
var ErrBind = errors.New("bind failed")

// Handler processes decoded messages.
type Handler interface {
	Dispatch(ctx context.Context, msg protocol.Message) error
}

// Config holds the listener settings.
type Config struct {
	// SocketPath is the Unix domain socket path.
	SocketPath string

	// SocketMode is applied to the socket file after binding.
	SocketMode os.FileMode

	// ReadTimeout bounds how long a started message may take to arrive.
	// Zero waits forever. Idle time between messages is never limited.
	ReadTimeout time.Duration

	// ChunkSize is the transfer stream capacity. Zero selects the default.
	ChunkSize int
}

// Server accepts connections and feeds their messages to a Handler.
type Server struct {
	cfg     Config
	handler Handler
	logger  *slog.Logger

	ready   chan struct{}
	stopped chan struct{}

	mu       sync.Mutex
	listener net.Listener
	active   net.Conn
	closing  bool
	served   int
}

// New creates a server. Call ListenAndServe to start it.
func New(cfg Config, h Handler, logger *slog.Logger) *Server {
	if cfg.SocketPath == "" {
		cfg.SocketPath = protocol.DefaultSocketPath
	}
	if cfg.SocketMode == 0 {
		cfg.SocketMode = 0660
	}
	return &Server{
		cfg:     cfg,
		handler: h,
		logger:  logger.With(slog.String("component", "server")),
		ready:   make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// ListenAndServe binds the socket and serves connections one at a time
// until ctx is cancelled or Shutdown is called. A bind failure is returned
// wrapped in ErrBind; every other failure is logged and recovered.
func (s *Server) ListenAndServe(ctx context.Context) error {
	defer close(s.stopped)

	ln, err := s.bind()
	if err != nil {
		return err
	}
	defer os.Remove(s.cfg.SocketPath)

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	s.logger.Info("listening", slog.String("socket", s.cfg.SocketPath))

	stop := context.AfterFunc(ctx, s.close)
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept failed", slog.String("error", err.Error()))
			continue
		}

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		s.serve(ctx, conn)
		s.untrack()
	}
}

func (s *Server) bind() (net.Listener, error) {
	path := s.cfg.SocketPath
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("%w: create socket directory: %w", ErrBind, err)
	}

	// Stale socket from a previous run
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBind, path, err)
	}

	if err := os.Chmod(path, s.cfg.SocketMode); err != nil {
		s.logger.Warn("could not chmod socket",
			slog.String("socket", path),
			slog.String("error", err.Error()),
		)
	}
	return ln, nil
}

// serve reads and dispatches messages until the connection fails or the
// peer disconnects.
func (s *Server) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	s.mu.Lock()
	s.served++
	id := s.served
	s.mu.Unlock()

	log := s.logger.With(slog.Int("conn", id))
	logPeer(log, conn)

	stream := transfer.NewStream(s.cfg.ChunkSize)
	for {
		h, buf, err := s.readFrame(conn, stream)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Info("client disconnected")
			case s.isClosing():
				log.Info("connection closed for shutdown")
			default:
				log.Error("closing connection", slog.String("error", err.Error()))
			}
			return
		}

		msg, err := protocol.Decode(h, buf)
		if err != nil {
			log.Error("failed to decode message",
				slog.String("type", h.Type.String()),
				slog.String("error", err.Error()),
			)
			continue
		}

		log.Debug("dispatching message",
			slog.String("type", h.Type.String()),
			slog.Uint64("length", h.Length),
		)
		if err := s.handler.Dispatch(ctx, msg); err != nil {
			log.Error("failed to handle message",
				slog.String("type", h.Type.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// readFrame reads one complete message. The header is validated before
// the body is read so that a bad or oversized length never causes an
// allocation.
func (s *Server) readFrame(conn net.Conn, stream *transfer.Stream) (protocol.Header, []byte, error) {
	rd := transfer.NewReader(conn, protocol.HeaderSize, stream)

	// Wait for the first bytes without a deadline: the UI may sit idle
	// for a long time between launches.
	if _, err := rd.Next(); err != nil {
		return protocol.Header{}, nil, err
	}
	if s.cfg.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			// Keep reading without a deadline
			s.logger.Debug("failed to set read deadline", slog.String("error", err.Error()))
		} else {
			defer s.clearDeadline(conn)
		}
	}

	if err := transfer.Drain(rd); err != nil {
		return protocol.Header{}, nil, fmt.Errorf("read header: %w", err)
	}

	h, err := protocol.ValidateHeader(rd.Bytes())
	if err != nil {
		return h, nil, fmt.Errorf("invalid header: %w", err)
	}
	if err := protocol.CheckLength(h); err != nil {
		return h, nil, fmt.Errorf("invalid header: %w", err)
	}

	rd.Grow(int(h.Length))
	if err := transfer.Drain(rd); err != nil {
		return h, nil, fmt.Errorf("read %s body: %w", h.Type, err)
	}
	return h, rd.Bytes(), nil
}

func (s *Server) clearDeadline(conn net.Conn) {
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		s.logger.Debug("failed to clear read deadline", slog.String("error", err.Error()))
	}
}

// Ready is closed once the socket is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// SocketPath returns the path the server listens on.
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}

// Healthy reports whether the listener is bound and not shutting down.
func (s *Server) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil && !s.closing
}

// Shutdown closes the listener and the active connection, then waits for
// ListenAndServe to return.
func (s *Server) Shutdown(ctx context.Context) error {
	s.close()
	select {
	case <-s.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return
	}
	s.closing = true
	if s.listener != nil {
		s.listener.Close()
	}
	if s.active != nil {
		s.active.Close()
	}
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.active = conn
	return true
}

func (s *Server) untrack() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}
