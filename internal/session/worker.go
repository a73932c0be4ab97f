// Package session implements the per-peer worker goroutine: it reads
// frames off one accepted connection, drives that peer's half of the
// owning Game's state machine, and writes replies. The loop shape —
// SetReadDeadline before every read, treat a timeout as "re-check the stop
// signal, keep going" rather than an error — is the teacher's
// PeerSession.Run pattern from node/p2p_runtime.go, generalized from a
// fixed-header binary protocol to the broker's streaming ASCII-header
// frame decoder.
package session

import (
	"context"
	"errors"
	"io"
	"time"

	"flagbroker.dev/broker/internal/game"
	"flagbroker.dev/broker/internal/obslog"
	"flagbroker.dev/broker/internal/policy"
	"flagbroker.dev/broker/internal/transport"
	"flagbroker.dev/broker/internal/wire"
)

// Config bounds a Worker's behavior; it is threaded through from
// internal/broker.Config so every worker in the process agrees on the same
// limits.
type Config struct {
	FrameBuffer  int
	MaxFlagTries int
	TokenLen     int
	Timeout      time.Duration
}

// Worker owns one peer connection's read/dispatch loop.
type Worker struct {
	conn     *transport.Conn
	g        *game.Game
	registry *game.Registry
	slot     int
	cfg      Config
	dec      *wire.Decoder
	log      *obslog.Logger
}

// New returns a Worker for a connection already attached to slot within g.
func New(conn *transport.Conn, g *game.Game, registry *game.Registry, slot int, cfg Config, log *obslog.Logger) *Worker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 4096
	}
	return &Worker{
		conn:     conn,
		g:        g,
		registry: registry,
		slot:     slot,
		cfg:      cfg,
		dec:      wire.NewDecoder(),
		log:      log,
	}
}

// Run drives the worker until the peer disconnects, the Game reaches
// Terminal, or ctx is cancelled (process-wide shutdown). It always closes
// the connection and releases the Game slot before returning, matching
// spec.md §4.4 step 5's teardown contract.
func (w *Worker) Run(ctx context.Context) {
	defer w.teardown()

	if err := w.sendFLG(game.FlagDirPrompt); err != nil {
		w.log.Printf("session", "addr=%s initial FLG_DIR send failed: %v", w.conn.Addr(), err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			// Process-wide shutdown: mark terminal directly rather than
			// falling through to teardown's NotifyDisconnect path, so the
			// peer is disconnected silently (spec.md §4.6), not told its
			// opponent vanished.
			w.g.Terminate()
			return
		case <-w.g.StopCh():
			return
		default:
		}

		buf, err := w.conn.ReadChunk(w.cfg.FrameBuffer, w.cfg.Timeout)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return
			}
			w.log.Printf("session", "addr=%s read error: %v", w.conn.Addr(), err)
			return
		}

		w.dec.Feed(buf)
		if !w.drainFrames() {
			return
		}
	}
}

// drainFrames decodes and dispatches every complete frame currently
// buffered, resyncing past malformed input per spec.md §7 (silent drop, no
// acknowledgement to the peer). It returns false if the Game has gone
// terminal mid-drain and the worker should exit.
func (w *Worker) drainFrames() bool {
	for {
		frame, err := w.dec.Next()
		if err != nil {
			w.log.Printf("session", "addr=%s malformed frame: %v", w.conn.Addr(), err)
			w.dec.Resync()
			continue
		}
		if frame == nil {
			return true
		}
		w.log.Printf("session", "addr=%s frame segments=%d", w.conn.Addr(), len(frame.Segments))
		for _, seg := range frame.Segments {
			w.dispatch(seg)
		}
		if w.g.Terminal() {
			return false
		}
	}
}

func (w *Worker) dispatch(seg wire.Segment) {
	switch seg.Type {
	case wire.TypeFLG:
		w.handleFLG(seg.Data)
	case wire.TypeCMD:
		w.handleCMD(seg.Data)
	default:
		// unknown segment types are ignored, per spec.md §4.4 step 4.
	}
}

func (w *Worker) handleCMD(data []byte) {
	if w.g.State() != game.Play {
		w.sendErr(game.MsgWaitForSecondClient)
		return
	}
	cmd := string(data)
	if !policy.CheckCommand(cmd) {
		w.sendErr(game.MsgCommandNotAllowed)
		return
	}
	if err := w.g.SendTo(1-w.slot, wire.Segment{Type: wire.TypeCMD, Data: data}); err != nil {
		w.log.Printf("session", "addr=%s forward failed: %v", w.conn.Addr(), err)
	}
}

func (w *Worker) sendErr(msg string) {
	if err := w.conn.Send(wire.Segment{Type: wire.TypeERR, Data: []byte(msg)}); err != nil {
		w.log.Printf("session", "addr=%s reply failed: %v", w.conn.Addr(), err)
	}
}

func (w *Worker) sendFLG(body string) error {
	return w.conn.Send(wire.Segment{Type: wire.TypeFLG, Data: []byte(body)})
}

// teardown runs the spec.md §4.4 step-5 exit sequence: signal the Game's
// stop channel if this worker is the one to discover the end, tell the
// surviving peer (if this wasn't already a clean win/abuse termination),
// decrement counts, and close the socket.
func (w *Worker) teardown() {
	wasTerminal := w.g.Terminal()
	if !wasTerminal {
		w.g.NotifyDisconnect(w.slot)
	}
	w.g.Leave(w.slot)
	w.registry.ReleasePeer()
	_ = w.conn.Close()
}
