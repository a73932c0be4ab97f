package session

import (
	"bytes"
	"fmt"

	"flagbroker.dev/broker/internal/game"
	"flagbroker.dev/broker/internal/policy"
	"flagbroker.dev/broker/internal/wire"
)

// handleFLG dispatches an FLG segment according to the Game's current
// state: a token submission while in Play, otherwise the next round of the
// setup handshake (spec.md §4.3).
func (w *Worker) handleFLG(data []byte) {
	if w.g.State() == game.Play {
		w.checkWin(data)
		return
	}
	w.advanceSetup(data)
}

// checkWin compares data against the opponent's stored token. Equality is
// byte-exact, including any trailing whitespace the peer's client
// included — spec.md §9 is explicit this is not a bug to "fix".
func (w *Worker) checkWin(data []byte) {
	token, ok := w.g.OpponentToken(w.slot)
	if !ok {
		return
	}
	if bytes.Equal(data, []byte(token)) {
		w.g.Win(w.slot)
	}
}

// advanceSetup runs one step of the per-peer setup sub-FSM. Before a
// peer's directory has been acknowledged, the expected FLG payload is a
// directory path (the reply to FLG_DIR); afterward, it is "okay" or
// "error" in response to the flag-write command the broker composed.
func (w *Worker) advanceSetup(data []byte) {
	peer := w.g.Peer(w.slot)
	if peer == nil {
		return
	}
	text := string(data)

	if !peer.DirAck {
		w.handleDirectoryReply(text)
		return
	}

	switch text {
	case game.FlagSetupOK:
		w.g.SetTokenAck(w.slot, true)
		if w.g.BothReady() {
			w.g.EnterPlay()
		}
	case game.FlagSetupError:
		w.handleSetupError()
	default:
		// Mid-handshake noise; ignored per spec.md §4.4 step 4's "unknown
		// TYPE -> ignore" rule, generalized to an unexpected FLG payload
		// shape within a known TYPE.
	}
}

// handleDirectoryReply validates the peer-reported directory against
// CheckPath (spec.md §4.3's re-validation, catching an injected path before
// it is interpolated unquoted into the composed command), then composes
// the flag-write command, stores the generated token, and marks dir_ack.
// The composed command itself is not re-run through CheckCommand/
// HasDenySubstring: it always contains '>' (the broker's own redirection,
// not attacker input), which the deny list exists to catch from a peer's
// CMD traffic, not from text the broker assembles after already vetting
// the one untrusted ingredient (path).
func (w *Worker) handleDirectoryReply(path string) {
	if !policy.CheckPath(path) {
		w.log.Printf("session", "addr=%s rejected setup path %q", w.conn.Addr(), path)
		w.resendDirPrompt()
		return
	}

	token, err := policy.RandomToken(w.cfg.TokenLen)
	if err != nil {
		w.log.Printf("session", "addr=%s token generation failed: %v", w.conn.Addr(), err)
		return
	}

	writeCmd := fmt.Sprintf("echo '%s' > %s/flag.txt", token, path)
	w.g.SetToken(w.slot, token)
	w.g.SetDirAck(w.slot, true)
	if err := w.conn.Send(wire.Segment{Type: wire.TypeFLG, Data: []byte(writeCmd)}); err != nil {
		w.log.Printf("session", "addr=%s flag-write send failed: %v", w.conn.Addr(), err)
	}
}

// handleSetupError resets both acks (losing any progress, preserved per
// spec.md §9) and either re-prompts or drops the peer once its retry
// budget (MAX_FLAG_TRIES) is exhausted.
func (w *Worker) handleSetupError() {
	w.g.ResetSetupFlags(w.slot)
	tries := w.g.IncrementFlagTries(w.slot)
	if tries > w.cfg.MaxFlagTries {
		w.log.Printf("session", "addr=%s dropped after %d setup errors", w.conn.Addr(), tries)
		w.g.DropForAbuse(w.slot)
		return
	}
	w.resendDirPrompt()
}

func (w *Worker) resendDirPrompt() {
	if err := w.sendFLG(game.FlagDirPrompt); err != nil {
		w.log.Printf("session", "addr=%s FLG_DIR resend failed: %v", w.conn.Addr(), err)
	}
}
