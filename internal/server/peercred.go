package server

import (
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sys/unix"
)

// PeerCredentials is the kernel-reported identity of a socket peer.
type PeerCredentials struct {
	PID int32
	UID uint32
	GID uint32
}

// peerCredentials reads SO_PEERCRED from a Unix socket connection.
func peerCredentials(conn net.Conn) (*PeerCredentials, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("connection is not a Unix socket")
	}

	raw, err := uc.SyscallConn()
	if err != nil {
		return nil, fmt.Errorf("get raw connection: %w", err)
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil {
		return nil, fmt.Errorf("raw control: %w", err)
	}
	if credErr != nil {
		return nil, fmt.Errorf("getsockopt SO_PEERCRED: %w", credErr)
	}

	return &PeerCredentials{PID: cred.Pid, UID: cred.Uid, GID: cred.Gid}, nil
}

func logPeer(log *slog.Logger, conn net.Conn) {
	cred, err := peerCredentials(conn)
	if err != nil {
		log.Info("client connected", slog.String("peer_error", err.Error()))
		return
	}
	log.Info("client connected",
		slog.Int("peer_pid", int(cred.PID)),
		slog.Int("peer_uid", int(cred.UID)),
		slog.Int("peer_gid", int(cred.GID)),
	)
}
