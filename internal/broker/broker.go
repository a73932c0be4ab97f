package broker

import (
	"context"
	"fmt"
	"time"

	"flagbroker.dev/broker/internal/dispatcher"
	"flagbroker.dev/broker/internal/game"
	"flagbroker.dev/broker/internal/lifecycle"
	"flagbroker.dev/broker/internal/obslog"
	"flagbroker.dev/broker/internal/session"
	"flagbroker.dev/broker/internal/transport"
)

// Server bundles a bound listener with its dispatcher, the way the
// teacher's cmd/rubin-node/main.go assembles a chain state, block store,
// sync engine, and peer manager behind one entrypoint — here condensed to
// the two pieces the broker actually needs.
type Server struct {
	ln   *transport.Listener
	disp *dispatcher.Dispatcher
	log  *obslog.Logger
}

// NewServer validates cfg, binds the listener, and constructs the
// dispatcher. The caller still owns calling Run.
func NewServer(cfg Config, log *obslog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ln, err := transport.Listen(cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("broker: %w", err)
	}
	disp := dispatcher.New(ln, dispatcher.Config{
		MaxGames: cfg.MaxGames,
		SessionCfg: session.Config{
			FrameBuffer:  cfg.FrameBuffer,
			MaxFlagTries: cfg.MaxFlagTries,
			TokenLen:     cfg.TokenLen,
			Timeout:      time.Duration(cfg.TimeoutSec) * time.Second,
		},
	}, log)
	return &Server{ln: ln, disp: disp, log: log}, nil
}

// Addr returns the bound listener address, primarily for tests that bind
// to an OS-assigned port.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Registry exposes the underlying game registry for tests and diagnostics.
func (s *Server) Registry() *game.Registry {
	return s.disp.Registry()
}

// Run blocks until shutdown (signal or parent cancellation) and returns
// the process exit code, per lifecycle.Run's contract.
func (s *Server) Run(ctx context.Context) int {
	return lifecycle.Run(ctx, s.ln, s.disp, s.log)
}
