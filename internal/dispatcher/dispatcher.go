// Package dispatcher runs the broker's accept loop: it pairs each new
// connection into a Game via the registry's first-fit scan, spawns a
// session worker for it, and reaps finished Games between accepts. This is
// the teacher's listener-goroutine shape (cmd/rubin-node/main.go's
// accept-and-spawn loop) generalized from a single always-open P2P listener
// to the broker's capacity-bounded, two-peer-per-Game pairing rule.
package dispatcher

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"flagbroker.dev/broker/internal/game"
	"flagbroker.dev/broker/internal/obslog"
	"flagbroker.dev/broker/internal/session"
	"flagbroker.dev/broker/internal/transport"
	"flagbroker.dev/broker/internal/wire"
)

// Config bounds the Dispatcher's accept loop.
type Config struct {
	MaxGames    int
	SessionCfg  session.Config
	AcceptRetry time.Duration // backoff after a transient Accept error
}

// Dispatcher owns the listener and the game registry.
type Dispatcher struct {
	ln       *transport.Listener
	registry *game.Registry
	cfg      Config
	log      *obslog.Logger

	wg sync.WaitGroup
}

// New returns a Dispatcher bound to ln.
func New(ln *transport.Listener, cfg Config, log *obslog.Logger) *Dispatcher {
	if cfg.MaxGames <= 0 {
		cfg.MaxGames = 10
	}
	if cfg.AcceptRetry <= 0 {
		cfg.AcceptRetry = 100 * time.Millisecond
	}
	return &Dispatcher{
		ln:       ln,
		registry: game.NewRegistry(cfg.MaxGames),
		cfg:      cfg,
		log:      log,
	}
}

// Registry exposes the underlying Registry, mainly for Lifecycle's drain
// loop and tests.
func (d *Dispatcher) Registry() *game.Registry {
	return d.registry
}

// Run accepts connections until ctx is cancelled or the listener closes.
// It blocks until the accept loop exits; callers close the listener (via
// Lifecycle) to unblock a pending Accept.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := d.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			d.log.Printf("dispatcher", "accept error: %v", err)
			time.Sleep(d.cfg.AcceptRetry)
			continue
		}

		d.handleAccepted(ctx, conn)
		d.reap()
	}
}

// handleAccepted enforces the global capacity limit, pairs the connection
// into a Game, and spawns its session worker.
func (d *Dispatcher) handleAccepted(ctx context.Context, conn *transport.Conn) {
	if d.registry.PeerCount() >= 2*d.cfg.MaxGames {
		d.log.Printf("dispatcher", "addr=%s rejected: %s", conn.Addr(), game.MsgGameLimitReached)
		_ = conn.Send(wire.Segment{Type: wire.TypeERR, Data: []byte(game.MsgGameLimitReached)})
		_ = conn.Close()
		return
	}

	g, err := d.registry.Pair()
	if err != nil {
		d.log.Printf("dispatcher", "addr=%s rejected: %s", conn.Addr(), game.MsgGameLimitReached)
		_ = conn.Send(wire.Segment{Type: wire.TypeERR, Data: []byte(game.MsgGameLimitReached)})
		_ = conn.Close()
		return
	}

	peer := &game.Peer{Conn: conn, Addr: conn.Addr()}
	slot, filled, err := g.Attach(peer)
	if err != nil {
		// The registry handed us a Game that filled between Pair and
		// Attach; extremely unlikely under the single-dispatcher-thread
		// invariant, but handled defensively rather than assumed away.
		d.log.Printf("dispatcher", "addr=%s attach race, rejecting: %v", conn.Addr(), err)
		_ = conn.Close()
		return
	}
	d.log.Printf("dispatcher", "addr=%s joined game slot=%d filled=%v", conn.Addr(), slot, filled)

	w := session.New(conn, g, d.registry, slot, d.cfg.SessionCfg, d.log)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		w.Run(ctx)
	}()
}

func (d *Dispatcher) reap() {
	if freed := d.registry.Reap(); freed > 0 {
		d.log.Printf("dispatcher", "reaped %d game(s)", freed)
	}
}

// Wait blocks until every spawned session worker has returned, used by
// Lifecycle's drain step.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
