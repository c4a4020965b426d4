// Package transfer moves protocol messages to and from a byte stream one
// bounded chunk at a time.
//
// A Reader or Writer is bound to a message buffer and a fixed-capacity
// Stream. Each call to Next moves at most one chunk and reports how many
// bytes actually moved. Short reads and writes are normal on stream sockets
// and simply leave more work for the next call. Next returns 0 with a nil
// error exactly once the whole message has been transferred.
//
// The engine has no timeout or retry policy. Callers decide how long to
// keep calling Next and what to do with an error.
package transfer

import "io"

// DefaultChunkSize is the stream capacity used by the daemon and client.
const DefaultChunkSize = 512

// State is the lifecycle of a Reader or Writer.
type State int

const (
	// Idle means no bytes have moved yet.
	Idle State = iota
	// Transferring means some but not all bytes have moved.
	Transferring
	// Complete means the whole message has moved. It is terminal.
	Complete
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Transferring:
		return "transferring"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Stream is a fixed-capacity staging buffer that every chunk passes through.
type Stream struct {
	buf []byte
}

// NewStream returns a stream holding at most capacity bytes. A capacity
// below 1 selects DefaultChunkSize.
func NewStream(capacity int) *Stream {
	if capacity < 1 {
		capacity = DefaultChunkSize
	}
	return &Stream{buf: make([]byte, capacity)}
}

// Capacity returns the maximum chunk size.
func (s *Stream) Capacity() int {
	return len(s.buf)
}

// Stepper is implemented by Reader and Writer.
type Stepper interface {
	Next() (int, error)
}

// Drain calls Next until the transfer completes or fails.
func Drain(s Stepper) error {
	for {
		n, err := s.Next()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// progress is the cursor shared by Reader and Writer.
type progress struct {
	total  int
	cursor int
	stream *Stream
}

func (p *progress) remaining() int {
	return p.total - p.cursor
}

func (p *progress) chunk() int {
	return min(p.remaining(), p.stream.Capacity())
}

// ChunksRemaining reports how many capacity-sized steps are still needed.
func (p *progress) ChunksRemaining() int {
	c := p.stream.Capacity()
	return (p.remaining() + c - 1) / c
}

// TotalTransferred reports how many bytes have moved so far.
func (p *progress) TotalTransferred() int {
	return p.cursor
}

// State reports where the transfer is in its lifecycle.
func (p *progress) State() State {
	switch {
	case p.cursor >= p.total:
		return Complete
	case p.cursor == 0:
		return Idle
	default:
		return Transferring
	}
}

// Reader fills a message buffer from an io.Reader.
type Reader struct {
	progress
	r   io.Reader
	dst []byte
}

// NewReader binds a destination of size bytes to r.
func NewReader(r io.Reader, size int, stream *Stream) *Reader {
	return &Reader{
		progress: progress{total: size, stream: stream},
		r:        r,
		dst:      make([]byte, size),
	}
}

// Grow extends the destination to size bytes, keeping what has been read.
// It is used once a header announces the full message length. Sizes at or
// below the current size are ignored.
func (rd *Reader) Grow(size int) {
	if size <= len(rd.dst) {
		return
	}
	rd.dst = append(rd.dst, make([]byte, size-len(rd.dst))...)
	rd.total = size
}

// Bytes returns the destination buffer. It is fully populated once State
// reports Complete.
func (rd *Reader) Bytes() []byte {
	return rd.dst
}

// Next reads at most one chunk. It returns io.EOF when the peer closes the
// stream before any byte arrived, io.ErrUnexpectedEOF when it closes in the
// middle of the message, and io.ErrNoProgress when the reader returns no
// data and no error.
func (rd *Reader) Next() (int, error) {
	n := rd.chunk()
	if n == 0 {
		return 0, nil
	}

	staged := rd.stream.buf[:n]
	m, err := rd.r.Read(staged)
	if m > 0 {
		copy(rd.dst[rd.cursor:], staged[:m])
		rd.cursor += m
		if err == io.EOF {
			err = nil
		}
		return m, err
	}

	switch {
	case err == io.EOF && rd.cursor == 0:
		return 0, io.EOF
	case err == io.EOF:
		return 0, io.ErrUnexpectedEOF
	case err != nil:
		return 0, err
	default:
		return 0, io.ErrNoProgress
	}
}

// Writer drains a message buffer into an io.Writer.
type Writer struct {
	progress
	w   io.Writer
	src []byte
}

// NewWriter binds the encoded message src to w.
func NewWriter(w io.Writer, src []byte, stream *Stream) *Writer {
	return &Writer{
		progress: progress{total: len(src), stream: stream},
		w:        w,
		src:      src,
	}
}

// Next writes at most one chunk. A write that moves nothing without an
// error is reported as io.ErrShortWrite.
func (wr *Writer) Next() (int, error) {
	n := wr.chunk()
	if n == 0 {
		return 0, nil
	}

	staged := wr.stream.buf[:n]
	copy(staged, wr.src[wr.cursor:wr.cursor+n])

	m, err := wr.w.Write(staged)
	if m < 0 {
		m = 0
	}
	wr.cursor += m
	if err != nil {
		return m, err
	}
	if m == 0 {
		return 0, io.ErrShortWrite
	}
	return m, nil
}

// WriteMessage writes src to w in chunks of the default size.
func WriteMessage(w io.Writer, src []byte) error {
	return Drain(NewWriter(w, src, NewStream(DefaultChunkSize)))
}
