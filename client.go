// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package tether

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/creachadair/tether/wire"
)

// A MessageHandler is invoked once per fully-read frame with the message
// type and payload. The payload slice is owned by the handler; the
// connection does not reuse it.
//
// The read loop does not re-arm itself: a handler that wants more messages
// must call ProcessMessages before returning, or arrange for it to be called
// once any dependent work has completed. This hand-off is the connection's
// backpressure control point.
type MessageHandler func(cc *ClientConn, mtype int64, payload []byte)

// A ConnectionErrorHandler is invoked when the read loop fails, including at
// ordinary EOF when the peer closes. It is terminal: the read loop does not
// re-arm after delivering an error.
type ConnectionErrorHandler func(cc *ClientConn, err error)

// A ClientConn is a connection to a co-located client process. It has all
// the write capabilities of a Conn, plus a serialized read loop that
// delivers inbound frames to a caller-supplied handler.
type ClientConn struct {
	*Conn

	onMessage  MessageHandler
	onError    ConnectionErrorHandler
	label      string   // opaque tag included in diagnostics
	typeNames  []string // optional rendering of message types, indexed by type
	registered atomic.Bool

	// fatalf terminates the process with a diagnostic. Overridden in tests.
	fatalf func(format string, args ...any)
}

// NewClientConn constructs a client connection that takes exclusive
// ownership of sock. Frames are delivered to onMessage and read failures to
// onError; both must be non-nil. The label is an opaque string included in
// diagnostics, and typeNames optionally maps message type values to names
// for log messages.
//
// The read loop is not started automatically; call ProcessMessages.
func NewClientConn(onMessage MessageHandler, onError ConnectionErrorHandler,
	sock net.Conn, label string, typeNames []string, opts Options) *ClientConn {
	cc := &ClientConn{
		Conn:      NewConn(sock, opts),
		onMessage: onMessage,
		onError:   onError,
		label:     label,
		typeNames: typeNames,
	}
	cc.fatalf = cc.opts.Logger.Fatalf
	return cc
}

// Register marks the connection as belonging to a handshaken peer. After
// registration a cookie mismatch on the read path is treated as an invariant
// violation and aborts the process rather than merely closing the
// connection. Register panics if called more than once.
func (cc *ClientConn) Register() {
	if cc.registered.Swap(true) {
		panic("tether: connection is already registered")
	}
}

// ProcessMessages arms the read loop for exactly one frame: header, cookie
// check, payload, handler. The caller must not arm a second read while one
// is outstanding; the message handler re-arms by calling ProcessMessages
// again once it is ready for the next frame.
func (cc *ClientConn) ProcessMessages() { go cc.readFrame() }

// readFrame performs one iteration of the read loop.
func (cc *ClientConn) readFrame() {
	done := cc.stats.start("ClientConn.readFrame.header")
	hdr, err := wire.ReadHeader(cc.sock)
	done()
	if err != nil {
		cc.onError(cc, readErr(err))
		return
	}

	if hdr.Cookie != cc.opts.Cookie {
		cc.rejectCookie(hdr.Cookie)
		return
	}
	if cc.opts.MaxMessageSize > 0 && hdr.Length > cc.opts.MaxMessageSize {
		cc.onError(cc, fmt.Errorf("%w: claimed length %d exceeds limit %d",
			ErrCorrupt, hdr.Length, cc.opts.MaxMessageSize))
		return
	}

	cc.bytesRead.Add(hdr.Length)
	mBytesRead.Add(float64(hdr.Length))

	payload := make([]byte, hdr.Length)
	done = cc.stats.start("ClientConn.readFrame.payload")
	_, err = io.ReadFull(cc.sock, payload)
	done()
	if err != nil {
		cc.onError(cc, readErr(err))
		return
	}

	start := time.Now()
	cc.onMessage(cc, hdr.Type, payload)
	if elapsed := time.Since(start); elapsed > cc.opts.HandlerWarningTimeout {
		cc.opts.Logger.Printf("tether: [%s] handling message type %s took %v",
			cc.label, cc.typeName(hdr.Type), elapsed)
	}
}

// rejectCookie handles a frame whose cookie did not match. For a registered
// peer this is an invariant violation and aborts the process; otherwise the
// frame may be stray local garbage, so the connection is logged and closed
// without taking down the daemon.
func (cc *ClientConn) rejectCookie(got int64) {
	msg := fmt.Sprintf("cookie mismatch for received message: received cookie %d, debug label %q", got, cc.label)
	if addr := cc.sock.RemoteAddr(); addr != nil && addr.String() != "" {
		msg += fmt.Sprintf(", remote endpoint %v", addr)
	}
	if cc.registered.Load() {
		cc.fatalf("tether: %s", msg)
		return
	}
	cc.opts.Logger.Printf("tether: warning: %s", msg)
	cc.Close()
}

// typeName renders a message type for diagnostics, preferring the
// caller-supplied name table when the type is in range.
func (cc *ClientConn) typeName(mtype int64) string {
	if mtype >= 0 && mtype < int64(len(cc.typeNames)) {
		return cc.typeNames[mtype]
	}
	return strconv.FormatInt(mtype, 10)
}

// DebugLabel returns the diagnostic label the connection was created with.
func (cc *ClientConn) DebugLabel() string { return cc.label }
