// Program tether is a command-line utility for exercising tether endpoints.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/creachadair/command"
	"github.com/creachadair/flax"
	"github.com/creachadair/tether"
)

var flags struct {
	Network string `flag:"network,Network of the endpoint (unix or tcp)"`
	Address string `flag:"address,Address of the endpoint"`
	Cookie  int64  `flag:"cookie,Frame cookie shared with the peer"`
}

var sendFlags struct {
	Attempts int           `flag:"attempts,Number of connect attempts (-1 for default)"`
	Pause    time.Duration `flag:"pause,Pause between connect attempts (-1 for default)"`
	Reply    int64         `flag:"reply,Wait for a reply of this message type (-1 for none)"`
}

func main() {
	flags.Network = "unix"
	sendFlags.Attempts = -1
	sendFlags.Pause = -1
	sendFlags.Reply = -1

	root := &command.C{
		Name:     filepath.Base(os.Args[0]),
		Help:     "Utilities for exercising tether endpoints.",
		SetFlags: command.Flags(flax.MustBind, &flags),
		Commands: []*command.C{
			{
				Name:  "send",
				Usage: "<type> [<payload>]",
				Help: `Send one framed message to the endpoint.

The message type is a decimal integer. The payload is taken from the
argument if present, otherwise from stdin. With -reply set, wait for one
reply frame of the given type and write its payload to stdout.`,
				SetFlags: command.Flags(flax.MustBind, &sendFlags),
				Run:      runSend,
			},
			{
				Name: "listen",
				Help: `Listen for connections and print received frames.

Each received frame is reported to stdout with its message type and
payload size. Listening continues until interrupted.`,
				Run: runListen,
			},
			command.VersionCommand(),
			command.HelpCommand(nil),
		},
	}
	command.RunOrFail(root.NewEnv(nil).MergeFlags(true), os.Args[1:])
}

func runSend(env *command.Env) error {
	if len(env.Args) == 0 {
		return env.Usagef("Missing message type")
	}
	mtype, err := strconv.ParseInt(env.Args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message type: %w", err)
	}
	var payload []byte
	if len(env.Args) > 1 {
		payload = []byte(env.Args[1])
	} else if payload, err = io.ReadAll(os.Stdin); err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	conn, err := tether.DialRetry(flags.Network, flags.Address,
		sendFlags.Attempts, sendFlags.Pause, tether.Options{Cookie: flags.Cookie})
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.WriteMessage(mtype, payload); err != nil {
		return err
	}
	if sendFlags.Reply < 0 {
		return nil
	}
	reply, err := conn.ReadMessage(sendFlags.Reply)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(reply)
	return err
}

func runListen(env *command.Env) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	lst, err := net.Listen(flags.Network, flags.Address)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "listening at %v\n", lst.Addr())

	return tether.Serve(ctx, lst, func(sock net.Conn) {
		cc := tether.NewClientConn(
			func(cc *tether.ClientConn, mtype int64, payload []byte) {
				fmt.Printf("[%s] message type %d, %d bytes\n", cc.DebugLabel(), mtype, len(payload))
				cc.ProcessMessages()
			},
			func(cc *tether.ClientConn, err error) {
				fmt.Fprintf(os.Stderr, "[%s] connection done: %v\n", cc.DebugLabel(), err)
				cc.Close()
			},
			sock, fmt.Sprint(sock.RemoteAddr()), nil, tether.Options{Cookie: flags.Cookie},
		)
		cc.ProcessMessages()
	})
}
