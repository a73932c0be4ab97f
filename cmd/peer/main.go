// Command peer is a minimal reference client for the broker's wire
// protocol. It exists only to drive the broker end-to-end in integration
// tests and manual exploration; the real client (GUI, client-side openssl
// invocation, on-disk flag file, terminal rendering) is an external
// collaborator per spec.md §1 and is not reimplemented here. This client
// auto-completes the setup handshake with a throwaway directory path and a
// stubbed "okay" acknowledgement (it never actually touches the
// filesystem), then relays stdin lines to the broker: a line beginning
// with "FLG:" submits a token guess, anything else is forwarded as a CMD.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"flagbroker.dev/broker/internal/policy"
	"flagbroker.dev/broker/internal/transport"
	"flagbroker.dev/broker/internal/wire"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintf(stderr, "usage: peer <host> <port>\n")
		return 2
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(stderr, "invalid port %q\n", args[1])
		return 2
	}
	addr := fmt.Sprintf("%s:%d", args[0], port)

	conn, err := transport.Dial(addr)
	if err != nil {
		fmt.Fprintf(stderr, "dial failed: %v\n", err)
		return 1
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lines := make(chan string)
	go scanLines(stdin, lines)

	dec := wire.NewDecoder()
	for {
		select {
		case <-ctx.Done():
			return 0
		case line, ok := <-lines:
			if !ok {
				return 0
			}
			if err := sendLine(conn, line); err != nil {
				fmt.Fprintf(stderr, "send failed: %v\n", err)
				return 1
			}
		default:
		}

		buf, err := conn.ReadChunk(4096, 200*time.Millisecond)
		if err != nil {
			if err == transport.ErrTimeout {
				continue
			}
			fmt.Fprintf(stdout, "connection closed: %v\n", err)
			return 0
		}
		dec.Feed(buf)
		for {
			frame, err := dec.Next()
			if err != nil {
				dec.Resync()
				continue
			}
			if frame == nil {
				break
			}
			for _, seg := range frame.Segments {
				handleSegment(conn, stdout, seg)
			}
		}
	}
}

func scanLines(r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		out <- sc.Text()
	}
}

func sendLine(conn *transport.Conn, line string) error {
	if rest, ok := strings.CutPrefix(line, "FLG:"); ok {
		return conn.Send(wire.Segment{Type: wire.TypeFLG, Data: []byte(rest)})
	}
	return conn.Send(wire.Segment{Type: wire.TypeCMD, Data: []byte(line)})
}

func handleSegment(conn *transport.Conn, stdout io.Writer, seg wire.Segment) {
	switch seg.Type {
	case wire.TypeFLG:
		handleFLG(conn, stdout, string(seg.Data))
	case wire.TypeOUT, wire.TypeERR, wire.TypeCMD:
		fmt.Fprintf(stdout, "%s: %s\n", seg.Type, seg.Data)
	}
}

// handleFLG auto-completes the setup handshake. Anything that isn't the
// literal FLG_DIR prompt or a broker-composed write command is printed,
// not interpreted, since a real flag submission is something the operator
// types at the prompt, not something this stub fabricates.
func handleFLG(conn *transport.Conn, stdout io.Writer, body string) {
	switch {
	case body == "FLG_DIR":
		path, err := policy.RandomPath(12)
		if err != nil {
			fmt.Fprintf(stdout, "FLG: failed to generate path: %v\n", err)
			return
		}
		fmt.Fprintf(stdout, "FLG: reporting directory %s\n", path)
		_ = conn.Send(wire.Segment{Type: wire.TypeFLG, Data: []byte(path)})
	case strings.HasPrefix(body, "echo "):
		fmt.Fprintf(stdout, "FLG: acknowledging setup command %q\n", body)
		_ = conn.Send(wire.Segment{Type: wire.TypeFLG, Data: []byte("okay")})
	default:
		fmt.Fprintf(stdout, "FLG: %s\n", body)
	}
}
