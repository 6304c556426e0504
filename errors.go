// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package tether

import "errors"

// Sentinel errors reported by connection operations. Use errors.Is to test
// for them; the values returned from methods generally wrap these with
// additional detail.
var (
	// ErrConnClosed is reported to pending write completions when a
	// connection is closed before their messages reach the socket.
	ErrConnClosed = errors.New("connection closed")

	// ErrBrokenPipe is reported by the async write pipeline once the peer
	// side of the socket has gone away. The condition is sticky: after the
	// first occurrence every queued and future async write completes with
	// this error without touching the socket.
	ErrBrokenPipe = errors.New("broken pipe")

	// ErrCookieMismatch indicates a frame whose cookie does not match the
	// connection's configured cookie: either framing corruption or a peer
	// built against a different version.
	ErrCookieMismatch = errors.New("cookie mismatch")

	// ErrCorrupt indicates a frame that was structurally readable but not
	// usable, such as a synchronous read that returned the wrong message
	// type or a claimed length above the configured cap.
	ErrCorrupt = errors.New("connection corrupted")
)
