// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package tether

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/creachadair/tether/wire"
	"github.com/valyala/bytebufferpool"
)

// queueWarnFloor is the queue length above which power-of-two growth of the
// pending async write queue is logged. Warning only at powers of two keeps
// alerts exponentially spaced under sustained backpressure.
const queueWarnFloor = 1000

// An asyncWrite is one message pending in the async write queue. The payload
// lives in a pooled buffer that is returned to the pool after the completion
// runs; the completion runs exactly once.
type asyncWrite struct {
	hdr      []byte // encoded frame header
	payload  *bytebufferpool.ByteBuffer
	complete func(error) // may be nil
}

// finish invokes the completion (if any) and releases the payload buffer.
func (w *asyncWrite) finish(status error) {
	if w.complete != nil {
		w.complete(status)
	}
	bytebufferpool.Put(w.payload)
}

// WriteMessageAsync queues one frame with the given message type and payload
// for asynchronous delivery. The payload is copied, so the caller may reuse
// it immediately. When the kernel has accepted the frame's bytes, or the
// write fails, complete is invoked exactly once with the outcome; complete
// may be nil if the caller does not care.
//
// Completions for a connection run in FIFO order of enqueue, serialized on a
// single flusher goroutine. At most one gather-write is outstanding at a
// time; each write round coalesces up to Options.WriteBatch queued messages,
// and every message in a round shares the round's status. Once the
// connection is closed, a message enqueued afterward completes with
// ErrConnClosed on the calling goroutine, and messages that Close drains
// itself (when no flush is active) complete on the goroutine calling Close.
//
// Once a write observes a broken pipe, the condition latches: all queued and
// future messages complete with ErrBrokenPipe without touching the socket.
func (c *Conn) WriteMessageAsync(mtype int64, payload []byte, complete func(error)) {
	c.asyncWrites.Add(1)
	c.bytesWritten.Add(int64(len(payload)))
	mAsyncWrites.Inc()
	mBytesWritten.Add(float64(len(payload)))

	buf := bytebufferpool.Get()
	buf.Write(payload) //nolint:errcheck // cannot fail
	w := &asyncWrite{
		hdr:      wire.Header{Cookie: c.opts.Cookie, Type: mtype, Length: int64(len(payload))}.Encode(),
		payload:  buf,
		complete: complete,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		w.finish(ErrConnClosed)
		return
	}
	c.queue = append(c.queue, w)
	n := len(c.queue)
	kick := !c.writing
	if kick {
		c.writing = true
	}
	c.mu.Unlock()
	mQueueDepth.Inc()

	if n > queueWarnFloor && n&(n-1) == 0 {
		c.opts.Logger.Printf("tether: connection has %d buffered async writes", n)
	}
	if kick {
		go c.flush()
	}
}

// flush drains the async write queue in gather-write rounds of up to
// Options.WriteBatch messages each. At most one flush goroutine is active
// per connection (guarded by c.writing); completions are invoked here, so
// they are serialized and FIFO.
func (c *Conn) flush() {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			c.writing = false
			c.mu.Unlock()
			return
		}
		n := min(len(c.queue), c.opts.WriteBatch)
		batch := c.queue[:n:n]
		closed, broken := c.closed, c.brokenPipe
		if !closed && !broken {
			c.flushes++
		}
		c.mu.Unlock()

		var status error
		switch {
		case closed:
			status = ErrConnClosed
		case broken:
			// The broken pipe is sticky: fail the batch without touching the
			// socket again.
			status = ErrBrokenPipe
		default:
			status = c.writeBatch(batch)
		}
		c.callHandlers(status, n)
	}
}

// writeBatch issues a single gather-write of the batched frames and maps the
// result. A broken pipe latches c.brokenPipe.
func (c *Conn) writeBatch(batch []*asyncWrite) error {
	bufs := make(net.Buffers, 0, 2*len(batch))
	for _, w := range batch {
		bufs = append(bufs, w.hdr, w.payload.B)
	}

	done := c.stats.start("Conn.flush.writeBatch")
	_, err := bufs.WriteTo(c.sock)
	done()
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.EPIPE) {
		c.opts.Logger.Printf("tether: broken pipe during async write flush")
		mBrokenPipes.Inc()
		c.mu.Lock()
		c.brokenPipe = true
		c.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrBrokenPipe, err)
	}
	c.opts.Logger.Printf("tether: error during async write flush: %v", err)
	return fmt.Errorf("async write: %w", err)
}

// callHandlers pops the first n queued messages and delivers status to each
// completion in FIFO order.
func (c *Conn) callHandlers(status error, n int) {
	c.mu.Lock()
	batch := c.queue[:n:n]
	c.queue = c.queue[n:]
	c.mu.Unlock()

	for _, w := range batch {
		w.finish(status)
		mQueueDepth.Dec()
	}
}
