// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package tether

import (
	"context"
	"errors"
	"net"

	"github.com/creachadair/taskgroup"
)

// Serve accepts connections from lst and invokes handle for each in its own
// goroutine, until ctx ends or lst closes. Each handler receives exclusive
// ownership of its socket; typically it will wrap the socket in a ClientConn
// and arm the read loop.
//
// When ctx ends, the listener is closed to unblock Accept, and Serve waits
// for running handlers to return. Serve reports nil if the listener was
// closed, whether by ctx or externally; otherwise it reports the error from
// Accept.
func Serve(ctx context.Context, lst net.Listener, handle func(net.Conn)) error {
	// A net.Listener does not obey a context, so simulate it by closing the
	// listener if ctx ends. The done channel releases the watcher when the
	// accept loop exits first.
	done := make(chan struct{})
	watcher := taskgroup.Go(func() error {
		select {
		case <-ctx.Done():
			lst.Close()
		case <-done:
		}
		return nil
	})

	g := taskgroup.New(nil)
	var err error
	for {
		sock, aerr := lst.Accept()
		if aerr != nil {
			if !errors.Is(aerr, net.ErrClosed) && ctx.Err() == nil {
				err = aerr
			}
			break
		}
		g.Go(func() error { handle(sock); return nil })
	}
	close(done)
	watcher.Wait() //nolint:errcheck // the watcher cannot fail
	g.Wait()       //nolint:errcheck // handlers report no errors
	return err
}
