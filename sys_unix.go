// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build unix

package tether

import (
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// initFD extracts the raw descriptor underlying sock, marking it
// close-on-exec as a side effect so child processes do not inherit the
// connection. It returns -1 if sock does not expose its descriptor; such
// connections still work but are invisible to CheckDisconnects.
func initFD(sock net.Conn) int {
	sc, ok := sock.(syscall.Conn)
	if !ok {
		return -1
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1
	}
	fd := -1
	raw.Control(func(f uintptr) { //nolint:errcheck // checked via fd sentinel
		fd = int(f)
		unix.CloseOnExec(fd)
	})
	return fd
}

// CheckDisconnects polls the descriptors of conns once, without blocking, and
// reports which peers have hung up. The result has one entry per connection,
// true if the peer side is gone. Connections without a usable descriptor
// report false.
//
// A polling failure is logged and reported as no disconnects, so a transient
// error never tears down healthy connections.
func CheckDisconnects(conns []*ClientConn) []bool {
	result := make([]bool, len(conns))
	if len(conns) == 0 {
		return result
	}

	fds := make([]unix.PollFd, len(conns))
	for i, cc := range conns {
		fds[i] = unix.PollFd{Fd: int32(cc.fd)} // Events == 0: errors and hangups only
	}
	for {
		_, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			conns[0].opts.Logger.Printf("tether: failed to poll for peer disconnects: %v", err)
			return result
		}
		break
	}
	for i, fd := range fds {
		result[i] = fd.Revents&unix.POLLHUP != 0
	}
	return result
}
