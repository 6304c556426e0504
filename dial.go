// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package tether

import (
	"fmt"
	"net"
	"time"

	"github.com/jpillora/backoff"
)

// Dial connects to a local endpoint and returns a connection over the
// resulting socket. It makes exactly one connect attempt; use DialRetry for
// the retrying variant.
func Dial(network, address string, opts Options) (*Conn, error) {
	sock, err := net.Dial(network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %q: %w", network, address, err)
	}
	return NewConn(sock, opts), nil
}

// DialRetry connects to a local endpoint, retrying failed attempts with a
// fixed pause between them. A negative attempts or pause selects the
// corresponding default from opts. DialRetry panics if attempts is zero,
// since a caller who asks for no attempts cannot ever succeed.
//
// The first failure is not logged; if a second attempt is needed, each
// subsequent failure is logged with the attempt number. The error from the
// final attempt is returned if all attempts fail.
func DialRetry(network, address string, attempts int, pause time.Duration, opts Options) (*Conn, error) {
	if attempts == 0 {
		panic("tether: dial with zero attempts")
	}
	opts = opts.withDefaults()
	if attempts < 0 {
		attempts = opts.ConnectAttempts
	}
	if pause < 0 {
		pause = opts.ConnectPause
	}

	// A fixed-interval schedule: the daemon and its clients are co-located,
	// so exponential growth buys nothing over a short constant pause.
	wait := &backoff.Backoff{Min: pause, Max: pause}

	var lastErr error
	for try := 1; try <= attempts; try++ {
		sock, err := net.Dial(network, address)
		if err == nil {
			return NewConn(sock, opts), nil
		}
		lastErr = err
		if try > 1 {
			opts.Logger.Printf("tether: connect to %s %q failed (attempt %d of %d): %v",
				network, address, try, attempts, err)
		}
		if try < attempts && pause > 0 {
			time.Sleep(wait.Duration())
		}
	}
	return nil, fmt.Errorf("dial %s %q after %d attempts: %w", network, address, attempts, lastErr)
}
