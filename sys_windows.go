// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build windows

package tether

import "net"

// initFD reports no usable descriptor on Windows; disconnects are noticed on
// the next read or write instead of by the poll sweep.
func initFD(net.Conn) int { return -1 }

// CheckDisconnects reports no disconnects on Windows, where the poll sweep is
// not implemented.
func CheckDisconnects(conns []*ClientConn) []bool { return make([]bool, len(conns)) }
