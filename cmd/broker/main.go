// Command broker runs the capture-the-flag session broker: it binds a TCP
// listener, pairs connecting peers into games, and brokers their setup and
// play traffic until every game finishes or the process receives a
// shutdown signal. Invocation mirrors spec.md §6: `broker <port>`.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"flagbroker.dev/broker/internal/broker"
	"flagbroker.dev/broker/internal/obslog"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	defaults := broker.DefaultConfig()
	cfg := defaults

	fs := flag.NewFlagSet("broker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	bindAddr := fs.String("bind", "0.0.0.0", "interface to bind")
	maxGames := fs.Int("max-games", defaults.MaxGames, "upper bound on concurrent games")
	frameBuffer := fs.Int("frame-buffer", defaults.FrameBuffer, "maximum single-read size in bytes")
	maxFlagTries := fs.Int("max-flag-tries", defaults.MaxFlagTries, "per-peer setup retry budget")
	tokenLen := fs.Int("token-len", defaults.TokenLen, "ASCII character count of the secret token")
	timeoutSec := fs.Int("timeout-sec", defaults.TimeoutSec, "worker multiplex timer, in seconds")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintf(stderr, "usage: broker [flags] <port>\n")
		return 2
	}
	port, err := strconv.Atoi(rest[0])
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(stderr, "invalid port %q\n", rest[0])
		return 2
	}

	cfg.BindAddr = fmt.Sprintf("%s:%d", *bindAddr, port)
	cfg.MaxGames = *maxGames
	cfg.FrameBuffer = *frameBuffer
	cfg.MaxFlagTries = *maxFlagTries
	cfg.TokenLen = *tokenLen
	cfg.TimeoutSec = *timeoutSec
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid config: %v\n", err)
		return 2
	}

	log := obslog.New(stdout)
	srv, err := broker.NewServer(cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "startup failed: %v\n", err)
		return 1
	}
	log.Printf("broker", "listening on %s max_games=%d", srv.Addr(), cfg.MaxGames)

	return srv.Run(context.Background())
}
