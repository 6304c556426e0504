// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package tether

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/creachadair/mds/value"
	"github.com/creachadair/tether/wire"
)

// A Conn is the write side of a tether connection. It owns a connected local
// stream socket exclusively, and provides synchronous framed writes and
// reads plus an asynchronous single-in-flight write pipeline (see
// WriteMessageAsync). Closing the connection closes the socket and delivers
// ErrConnClosed to every write completion still queued.
//
// Construct values of this type with NewConn, Dial, or DialRetry.
type Conn struct {
	sock net.Conn
	fd   int // raw descriptor for the disconnect sweep, -1 if unavailable
	opts Options

	stats *eventStats // nil unless Options.EventStats

	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	syncWrites   atomic.Int64
	asyncWrites  atomic.Int64

	mu         sync.Mutex
	queue      []*asyncWrite // pending messages, FIFO
	writing    bool          // an async flush round is in flight
	brokenPipe bool          // sticky, see ErrBrokenPipe
	closed     bool
	flushes    int64 // number of gather-write rounds issued
}

// NewConn constructs a connection that takes exclusive ownership of sock,
// which must already be connected. On POSIX systems the underlying
// descriptor is marked close-on-exec.
func NewConn(sock net.Conn, opts Options) *Conn {
	c := &Conn{sock: sock, fd: initFD(sock), opts: opts.withDefaults()}
	if c.opts.EventStats {
		c.stats = newEventStats()
	}
	return c
}

// Logger returns the logger the connection reports warnings to.
func (c *Conn) Logger() interface{ Printf(string, ...any) } { return c.opts.Logger }

// WriteMessage synchronously writes one frame with the given message type
// and payload, blocking until the kernel has accepted all bytes. Interrupted
// syscalls are retried by the runtime and never surface to the caller.
func (c *Conn) WriteMessage(mtype int64, payload []byte) error {
	// Counters are best-effort and intentionally updated before I/O is
	// attempted, matching the historical behavior of the daemon.
	c.syncWrites.Add(1)
	c.bytesWritten.Add(int64(len(payload)))
	mSyncWrites.Inc()
	mBytesWritten.Add(float64(len(payload)))

	hdr := wire.Header{Cookie: c.opts.Cookie, Type: mtype, Length: int64(len(payload))}
	return c.writeBuffers(net.Buffers{hdr.Encode(), payload})
}

// writeBuffers gather-writes bufs to the socket until drained.
func (c *Conn) writeBuffers(bufs net.Buffers) error {
	if _, err := bufs.WriteTo(c.sock); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// ReadMessage synchronously reads one frame and checks that its type matches
// wantType. It returns the payload on success. The error distinguishes a
// cookie mismatch (ErrCookieMismatch), a type mismatch (ErrCorrupt), and
// plain I/O failures.
func (c *Conn) ReadMessage(wantType int64) ([]byte, error) {
	hdr, err := wire.ReadHeader(c.sock)
	if err != nil {
		return nil, readErr(err)
	}
	if hdr.Cookie != c.opts.Cookie {
		return nil, fmt.Errorf("%w: received cookie %d", ErrCookieMismatch, hdr.Cookie)
	}
	if hdr.Type != wantType {
		return nil, fmt.Errorf("%w: expected message type %d, received %d", ErrCorrupt, wantType, hdr.Type)
	}
	if c.opts.MaxMessageSize > 0 && hdr.Length > c.opts.MaxMessageSize {
		return nil, fmt.Errorf("%w: claimed length %d exceeds limit %d",
			ErrCorrupt, hdr.Length, c.opts.MaxMessageSize)
	}
	c.bytesRead.Add(hdr.Length)
	mBytesRead.Add(float64(hdr.Length))
	payload := make([]byte, hdr.Length)
	if _, err := io.ReadFull(c.sock, payload); err != nil {
		return nil, readErr(err)
	}
	return payload, nil
}

// readErr maps a low-level read failure to the error reported to callers.
// ENOENT is called out specially: on a named local endpoint it means the
// peer has closed and removed the socket.
func readErr(err error) error {
	if errors.Is(err, syscall.ENOENT) {
		return fmt.Errorf("failed to read data from the socket: %w", err)
	}
	return fmt.Errorf("read message: %w", err)
}

// Close closes the socket. Write completions still queued and not claimed by
// an in-flight flush round complete with ErrConnClosed, in enqueue order.
// Close is idempotent; calls after the first report nil.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	var pending []*asyncWrite
	if !c.writing {
		// No flusher is active, so nobody else will drain the queue.
		pending, c.queue = c.queue, nil
	}
	c.mu.Unlock()

	err := c.sock.Close()
	for _, w := range pending {
		w.finish(ErrConnClosed)
		mQueueDepth.Dec()
	}
	return err
}

// LocalAddr returns the local address of the underlying socket.
func (c *Conn) LocalAddr() net.Addr { return c.sock.LocalAddr() }

// RemoteAddr returns the remote address of the underlying socket.
func (c *Conn) RemoteAddr() net.Addr { return c.sock.RemoteAddr() }

// BytesRead reports the total payload bytes read on the connection.
func (c *Conn) BytesRead() int64 { return c.bytesRead.Load() }

// BytesWritten reports the total payload bytes written on the connection.
// The counter is advanced when a write is requested, not when it completes.
func (c *Conn) BytesWritten() int64 { return c.bytesWritten.Load() }

// DebugString renders the connection's observable counters and queue state
// in a human-readable form. It is safe to call from any goroutine.
func (c *Conn) DebugString() string {
	c.mu.Lock()
	var pendingBytes int64
	for _, w := range c.queue {
		pendingBytes += int64(w.payload.Len())
	}
	writing := c.writing
	c.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n- bytes read: %d", c.bytesRead.Load())
	fmt.Fprintf(&sb, "\n- bytes written: %d", c.bytesWritten.Load())
	fmt.Fprintf(&sb, "\n- num async writes: %d", c.asyncWrites.Load())
	fmt.Fprintf(&sb, "\n- num sync writes: %d", c.syncWrites.Load())
	fmt.Fprintf(&sb, "\n- writing: %s", value.Cond(writing, "yes", "no"))
	fmt.Fprintf(&sb, "\n- pending async bytes: %d", pendingBytes)
	return sb.String()
}

// EventStats returns a snapshot of the per-operation event statistics, or
// nil if Options.EventStats was not enabled for the connection.
func (c *Conn) EventStats() map[string]OpStats { return c.stats.snapshot() }
