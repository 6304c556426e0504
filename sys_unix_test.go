// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

//go:build unix

package tether_test

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/creachadair/tether"
	"github.com/fortytw2/leaktest"
	"github.com/google/go-cmp/cmp"
)

func TestCheckDisconnects(t *testing.T) {
	defer leaktest.Check(t)()

	path := filepath.Join(t.TempDir(), "poll.sock")
	lst, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer lst.Close()

	// Set up three connected pairs. The daemon side of each is wrapped in a
	// connection; the read loops are never armed, the sweep must notice the
	// hangup on its own.
	const numConns = 3
	var clients []net.Conn
	var conns []*tether.ClientConn
	for range numConns {
		peer, err := net.Dial("unix", path)
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		clients = append(clients, peer)

		sock, err := lst.Accept()
		if err != nil {
			t.Fatalf("Accept failed: %v", err)
		}
		conns = append(conns, tether.NewClientConn(
			func(*tether.ClientConn, int64, []byte) {},
			func(*tether.ClientConn, error) {},
			sock, "sweep", nil, tether.Options{Cookie: testCookie},
		))
	}
	defer func() {
		for _, cc := range conns {
			cc.Close()
		}
		for _, peer := range clients {
			peer.Close()
		}
	}()

	if got := tether.CheckDisconnects(conns); cmp.Diff(make([]bool, numConns), got) != "" {
		t.Errorf("Disconnects before close: got %v, want none", got)
	}

	clients[1].Close()

	want := []bool{false, true, false}
	deadline := time.Now().Add(5 * time.Second)
	for {
		got := tether.CheckDisconnects(conns)
		if cmp.Diff(want, got) == "" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("Disconnects: got %v, want %v", got, want)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := tether.CheckDisconnects(nil); len(got) != 0 {
		t.Errorf("Empty sweep: got %v, want empty", got)
	}
}
