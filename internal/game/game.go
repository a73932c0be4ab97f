// Package game implements the per-session state machine that pairs two
// peers, runs their setup handshake, and detects the winning submission.
//
// The shape — a small mutex-guarded struct holding fixed peer slots plus a
// one-shot stop channel — is modeled on the teacher's PeerState/PeerManager
// pair (node/p2p_runtime.go) and its ban-score threshold/decay primitive
// (node/p2p/banscore.go), adapted from an unbounded peer map to the spec's
// fixed 2-slot array, which also matches the original C server's
// `acceptedSockets[MAX_CLIENTS]` array-of-slots design.
package game

import (
	"fmt"
	"sync"

	"flagbroker.dev/broker/internal/wire"
)

// State is a Game's position in the setup/play/terminal lifecycle.
type State int

const (
	WaitPeer State = iota
	Setup
	Play
	Terminal
)

func (s State) String() string {
	switch s {
	case WaitPeer:
		return "wait_peer"
	case Setup:
		return "setup"
	case Play:
		return "play"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Sender is the narrow interface Game needs to deliver a segment to a peer.
// It is implemented by the transport layer; Game never touches net.Conn
// directly, matching spec.md §5's rule that the Game lock protects state,
// not socket I/O, while still serializing writes through that lock.
type Sender interface {
	Send(seg wire.Segment) error
	Addr() string
}

// Peer is one occupant of a Game slot.
type Peer struct {
	Conn      Sender
	Addr      string
	Token     string
	DirAck    bool
	TokenAck  bool
	FlagTries int
}

// Game is a session pairing at most two peers, each with its own secret
// token (spec.md §3).
type Game struct {
	mu       sync.Mutex
	slots    [2]*Peer
	count    int
	state    State
	terminal bool
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New returns a Game waiting for its first peer.
func New() *Game {
	return &Game{state: WaitPeer, stopCh: make(chan struct{})}
}

// StopCh is closed exactly once, by whichever call first transitions the
// Game to Terminal (spec.md §5 Cancellation).
func (g *Game) StopCh() <-chan struct{} {
	return g.stopCh
}

func (g *Game) markTerminalLocked() {
	if g.terminal {
		return
	}
	g.terminal = true
	g.state = Terminal
	g.stopOnce.Do(func() { close(g.stopCh) })
}

// Attach places p in the first open slot. filled reports whether this call
// brought the Game's count to 2, which transitions WaitPeer -> Setup.
func (g *Game) Attach(p *Peer) (slot int, filled bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count >= len(g.slots) {
		return -1, false, fmt.Errorf("game: full")
	}
	idx := 0
	if g.slots[0] != nil {
		idx = 1
	}
	g.slots[idx] = p
	g.count++
	if g.count == len(g.slots) {
		g.state = Setup
		filled = true
	}
	return idx, filled, nil
}

// State returns the Game's current lifecycle state.
func (g *Game) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Count returns the number of occupied peer slots.
func (g *Game) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Terminal reports whether the Game has reached its terminal state.
func (g *Game) Terminal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.terminal
}

// Peer returns a copy of the peer record occupying slot, or nil if empty.
func (g *Game) Peer(slot int) *Peer {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.slots[slot]
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

// SendTo writes seg to the peer in slot, serialized under the Game lock —
// spec.md §4.4's "all broadcasts to the peer are serialized through the
// Game lock" ordering guarantee.
func (g *Game) SendTo(slot int, seg wire.Segment) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.slots[slot]
	if p == nil {
		return fmt.Errorf("game: slot %d empty", slot)
	}
	return p.Conn.Send(seg)
}

// OpponentToken returns the stored token of the peer opposite slot.
func (g *Game) OpponentToken(slot int) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.slots[1-slot]
	if p == nil {
		return "", false
	}
	return p.Token, true
}

// SetToken stores the setup-generated token for slot's peer.
func (g *Game) SetToken(slot int, token string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.slots[slot]; p != nil {
		p.Token = token
	}
}

// SetDirAck records that slot's peer acknowledged the FLG_DIR prompt with a
// directory path.
func (g *Game) SetDirAck(slot int, v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.slots[slot]; p != nil {
		p.DirAck = v
	}
}

// SetTokenAck records that slot's peer confirmed the flag-write command.
func (g *Game) SetTokenAck(slot int, v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.slots[slot]; p != nil {
		p.TokenAck = v
	}
}

// ResetSetupFlags clears both acks, losing any progress made — preserved
// from the source's behavior on any FLG:error (spec.md §9 Open Questions:
// this is defensive, not a bug, and is not "fixed" here).
func (g *Game) ResetSetupFlags(slot int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p := g.slots[slot]; p != nil {
		p.DirAck = false
		p.TokenAck = false
	}
}

// IncrementFlagTries bumps slot's setup-retry counter and returns the new
// value, for comparison against MAX_FLAG_TRIES.
func (g *Game) IncrementFlagTries(slot int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.slots[slot]
	if p == nil {
		return 0
	}
	p.FlagTries++
	return p.FlagTries
}

// BothReady reports whether both slots are occupied and both peers have
// completed the setup handshake (spec.md §4.3 SETUP -> PLAY, implicit edge).
func (g *Game) BothReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.count != len(g.slots) {
		return false
	}
	for _, p := range g.slots {
		if p == nil || !p.DirAck || !p.TokenAck {
			return false
		}
	}
	return true
}

// EnterPlay transitions Setup -> Play. It is a no-op from any other state.
func (g *Game) EnterPlay() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == Setup {
		g.state = Play
	}
}

// Win declares slot's peer the winner: it sends the canonical won/lost
// frames to both peers and transitions the Game to Terminal. It is a no-op
// if the Game is already terminal, which is what makes a racing second
// submission — even one with an identical token — never overturn the first
// (spec.md §9 Open Questions).
func (g *Game) Win(slot int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.terminal {
		return
	}
	winner := g.slots[slot]
	loser := g.slots[1-slot]
	if winner != nil {
		_ = winner.Conn.Send(wire.Segment{Type: wire.TypeOUT, Data: []byte(MsgYouWon)})
	}
	if loser != nil {
		_ = loser.Conn.Send(wire.Segment{Type: wire.TypeOUT, Data: []byte(MsgYouLost)})
	}
	g.markTerminalLocked()
}

// NotifyDisconnect is called by slot's worker when its own peer connection
// died unexpectedly. If the Game wasn't already terminal and an opponent is
// present, it sends the canonical disconnect notice to the opponent and
// transitions the Game to Terminal.
func (g *Game) NotifyDisconnect(slot int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	alreadyTerminal := g.terminal
	opponent := g.slots[1-slot]
	g.markTerminalLocked()
	if !alreadyTerminal && opponent != nil {
		_ = opponent.Conn.Send(wire.Segment{Type: wire.TypeERR, Data: []byte(MsgSecondClientGone)})
	}
}

// DropForAbuse terminates the Game because slot's peer exceeded its setup
// retry budget (spec.md §4.3, MAX_FLAG_TRIES). The caller is responsible
// for closing slot's own socket; the opponent, if any, observes the closed
// stop channel on its own next multiplex tick.
func (g *Game) DropForAbuse(slot int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markTerminalLocked()
}

// Terminate transitions the Game to Terminal without notifying anyone,
// used for global shutdown (spec.md §4.6) where the listener and every
// socket are being torn down directly.
func (g *Game) Terminate() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.markTerminalLocked()
}

// Leave is called by a worker as its very last step before closing its own
// socket, regardless of why it is exiting. It clears the slot and
// decrements count, returning the Game's remaining count so the caller can
// decide whether the Game is now empty.
func (g *Game) Leave(slot int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slots[slot] != nil {
		g.slots[slot] = nil
		if g.count > 0 {
			g.count--
		}
	}
	return g.count
}
