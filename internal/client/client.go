// Package client is the UI side of the daemon socket.
//
// A Client holds one connection. The launcher sends a Configure once after
// connecting and a Launch each time the player confirms a selection:
//
//	c, err := client.Dial(ctx, protocol.DefaultSocketPath)
//	defer c.Close()
//	c.Configure(ctx, games)
//	c.Launch(ctx, "maze")
//
// The daemon never replies; a nil error means the message was written.
package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/shotos/fivednine/internal/protocol"
	"github.com/shotos/fivednine/internal/transfer"
)

// DialTimeout bounds connection setup when ctx has no deadline.
const DialTimeout = 5 * time.Second

// Client sends messages to the daemon over one connection.
type Client struct {
	conn   net.Conn
	stream *transfer.Stream
}

// Dial connects to the daemon socket at path.
func Dial(ctx context.Context, path string) (*Client, error) {
	d := net.Dialer{Timeout: DialTimeout}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("daemon not available at %s: %w", path, err)
	}
	return &Client{
		conn:   conn,
		stream: transfer.NewStream(transfer.DefaultChunkSize),
	}, nil
}

// Available reports whether a daemon is accepting connections at path.
func Available(path string) bool {
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Configure sends the list of launchable games. More than
// protocol.MaxConfigurations entries fail with protocol.ErrCapacityExceeded
// before anything is written.
func (c *Client) Configure(ctx context.Context, games []protocol.GameConfiguration) error {
	msg, err := protocol.BuildConfigureMessage(games)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

// Launch asks the daemon to start the game configured under name.
func (c *Client) Launch(ctx context.Context, name string) error {
	return c.send(ctx, protocol.BuildLaunchMessage(name))
}

func (c *Client) send(ctx context.Context, msg protocol.Message) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := c.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
		// A failed reset surfaces on the next send's SetWriteDeadline
		defer c.conn.SetWriteDeadline(time.Time{})
	}

	h := msg.MessageHeader()
	w := transfer.NewWriter(c.conn, protocol.Encode(msg), c.stream)
	if err := transfer.Drain(w); err != nil {
		return fmt.Errorf("send %s message (%d of %d bytes written): %w",
			h.Type, w.TotalTransferred(), h.Length, err)
	}
	return nil
}

// Close closes the connection. The daemon logs the disconnect and waits
// for the next client.
func (c *Client) Close() error {
	return c.conn.Close()
}
