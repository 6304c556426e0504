// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

// Package tether implements framed message transport between co-located
// processes over local stream sockets.
//
// Messages are carried in frames with a fixed 24-byte header of three
// little-endian 64-bit values: a cookie, a message type, and the payload
// length in bytes. The cookie is a version stamp shared by both ends of a
// deployment; a mismatch means the peer was built against a different
// version, or the stream has lost framing. Payloads are opaque to the
// transport.
//
// # Connections
//
// The core types defined by this package are [Conn] and [ClientConn].
//
// A Conn owns a connected stream socket and provides synchronous framed
// reads and writes plus an asynchronous write pipeline. To create one over
// an existing socket:
//
//	c := tether.NewConn(sock, tether.Options{Cookie: cookie})
//
// or dial an endpoint directly with [Dial] or [DialRetry].
//
// [Conn.WriteMessage] blocks until the kernel has accepted the frame.
// [Conn.WriteMessageAsync] queues the frame and returns immediately; the
// completion callback is invoked exactly once when the write finishes.
// Completions for a connection fire in FIFO order of enqueue, and at most
// one kernel write is outstanding per connection at a time. Successive
// queued messages may be coalesced into a single gather-write; see
// [Options.WriteBatch].
//
// # Receiving messages
//
// A [ClientConn] extends Conn with a handler-driven read loop:
//
//	cc := tether.NewClientConn(onMessage, onError, sock, "worker", nil, opts)
//	cc.ProcessMessages()
//
// ProcessMessages arms the loop for exactly one frame. The message handler
// must call ProcessMessages again when it is ready for the next frame; this
// hand-off is the natural point to apply backpressure. Read failures,
// including ordinary EOF when the peer closes, are delivered once to the
// connection error handler, after which the loop does not re-arm.
//
// # Disconnect detection
//
// On POSIX systems, [CheckDisconnects] polls a batch of connections in a
// single non-blocking syscall and reports which peers have hung up, letting
// a daemon notice dead clients without waiting for a read or write on each
// connection to fail.
//
// # Metrics
//
// Connections maintain per-connection byte and write counters, observable
// via [Conn.BytesRead], [Conn.BytesWritten], and [Conn.DebugString].
// Process-wide aggregates are registered with the default Prometheus
// registry:
//
//   - tether_sync_writes_total: counter of synchronous writes requested
//   - tether_async_writes_total: counter of asynchronous writes enqueued
//   - tether_bytes_written_total: counter of payload bytes written
//   - tether_bytes_read_total: counter of payload bytes read
//   - tether_async_queue_depth: gauge of buffered async writes
//   - tether_broken_pipes_total: counter of connections with a broken pipe
//
// Optionally, setting [Options.EventStats] records per-operation counts and
// cumulative durations for the asynchronous read and write paths, observable
// via [Conn.EventStats].
package tether
