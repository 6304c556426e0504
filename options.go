// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package tether

import (
	"log"
	"os"
	"time"
)

// Options carry the configuration for a connection. They are copied at
// construction; changing an Options value after a connection is created has
// no effect on that connection. A zero Options is valid and selects the
// defaults below, with cookie 0.
type Options struct {
	// Cookie is embedded in every outgoing frame and required on every
	// incoming frame.
	Cookie int64

	// ConnectAttempts is the number of connect attempts made when the caller
	// passes a negative attempt count to DialRetry (default 10).
	ConnectAttempts int

	// ConnectPause is the sleep after each failed connect attempt when the
	// caller passes a negative pause to DialRetry (default 1s).
	ConnectPause time.Duration

	// HandlerWarningTimeout is the message-handler wall time above which a
	// warning is logged (default 1s).
	HandlerWarningTimeout time.Duration

	// WriteBatch bounds how many queued messages are coalesced into a single
	// gather-write (default 1). With the default every message gets a write
	// round of its own; larger values trade per-message status granularity
	// within a batch for fewer syscalls.
	WriteBatch int

	// MaxMessageSize caps the payload length a peer may claim in a frame
	// header. Zero means no cap.
	MaxMessageSize int64

	// EventStats enables recording of per-operation counts and cumulative
	// durations for the asynchronous read and write paths. Observable via
	// Conn.EventStats; has no effect on behavior.
	EventStats bool

	// Logger receives warnings and errors. If nil, a logger writing to
	// standard error is used.
	Logger *log.Logger
}

// withDefaults returns a copy of o with zero fields replaced by defaults.
func (o Options) withDefaults() Options {
	if o.ConnectAttempts <= 0 {
		o.ConnectAttempts = 10
	}
	if o.ConnectPause <= 0 {
		o.ConnectPause = 1 * time.Second
	}
	if o.HandlerWarningTimeout <= 0 {
		o.HandlerWarningTimeout = 1 * time.Second
	}
	if o.WriteBatch <= 0 {
		o.WriteBatch = 1
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return o
}
