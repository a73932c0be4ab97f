package game

import (
	"sync"
	"testing"

	"flagbroker.dev/broker/internal/wire"
)

type fakeSender struct {
	mu   sync.Mutex
	addr string
	sent []wire.Segment
}

func (f *fakeSender) Send(seg wire.Segment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, seg)
	return nil
}

func (f *fakeSender) Addr() string { return f.addr }

func (f *fakeSender) last() (wire.Segment, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return wire.Segment{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func newPeer(addr string) (*Peer, *fakeSender) {
	fs := &fakeSender{addr: addr}
	return &Peer{Conn: fs, Addr: addr}, fs
}

func TestAttachTransitionsToSetupOnSecondPeer(t *testing.T) {
	g := New()
	p1, _ := newPeer("a")
	p2, _ := newPeer("b")

	slot0, filled, err := g.Attach(p1)
	if err != nil || filled || slot0 != 0 {
		t.Fatalf("first attach = (%d, %v, %v), want (0, false, nil)", slot0, filled, err)
	}
	if g.State() != WaitPeer {
		t.Fatalf("state after one peer = %v, want WaitPeer", g.State())
	}

	slot1, filled, err := g.Attach(p2)
	if err != nil || !filled || slot1 != 1 {
		t.Fatalf("second attach = (%d, %v, %v), want (1, true, nil)", slot1, filled, err)
	}
	if g.State() != Setup {
		t.Fatalf("state after two peers = %v, want Setup", g.State())
	}
}

func TestAttachRejectsThirdPeer(t *testing.T) {
	g := New()
	p1, _ := newPeer("a")
	p2, _ := newPeer("b")
	p3, _ := newPeer("c")
	if _, _, err := g.Attach(p1); err != nil {
		t.Fatal(err)
	}
	if _, _, err := g.Attach(p2); err != nil {
		t.Fatal(err)
	}
	if _, _, err := g.Attach(p3); err == nil {
		t.Fatal("expected error attaching a third peer")
	}
}

func TestBothReadyRequiresBothAcks(t *testing.T) {
	g := New()
	p1, _ := newPeer("a")
	p2, _ := newPeer("b")
	g.Attach(p1)
	g.Attach(p2)

	if g.BothReady() {
		t.Fatal("BothReady true before any acks")
	}
	g.SetDirAck(0, true)
	g.SetTokenAck(0, true)
	if g.BothReady() {
		t.Fatal("BothReady true with only one peer acked")
	}
	g.SetDirAck(1, true)
	g.SetTokenAck(1, true)
	if !g.BothReady() {
		t.Fatal("BothReady false with both peers acked")
	}
}

func TestResetSetupFlagsClearsBothAcks(t *testing.T) {
	g := New()
	p1, _ := newPeer("a")
	g.Attach(p1)
	g.SetDirAck(0, true)
	g.SetTokenAck(0, true)
	g.ResetSetupFlags(0)
	p := g.Peer(0)
	if p.DirAck || p.TokenAck {
		t.Fatalf("acks not cleared: %+v", p)
	}
}

func TestWinNotifiesBothPeersAndIsIdempotent(t *testing.T) {
	g := New()
	p1, s1 := newPeer("a")
	p2, s2 := newPeer("b")
	g.Attach(p1)
	g.Attach(p2)

	g.Win(0)
	if !g.Terminal() {
		t.Fatal("game not terminal after Win")
	}
	seg, ok := s1.last()
	if !ok || seg.Type != wire.TypeOUT || string(seg.Data) != MsgYouWon {
		t.Fatalf("winner got %+v, %v", seg, ok)
	}
	seg, ok = s2.last()
	if !ok || seg.Type != wire.TypeOUT || string(seg.Data) != MsgYouLost {
		t.Fatalf("loser got %+v, %v", seg, ok)
	}

	// A second, racing Win call (e.g. a duplicate token submission) must not
	// re-fire notifications once the game is already terminal.
	g.Win(1)
	if n := len(s1.sent); n != 1 {
		t.Fatalf("winner received %d sends, want 1 (no re-notify)", n)
	}
}

func TestNotifyDisconnectTellsOpponentOnlyOnce(t *testing.T) {
	g := New()
	p1, _ := newPeer("a")
	p2, s2 := newPeer("b")
	g.Attach(p1)
	g.Attach(p2)

	g.NotifyDisconnect(0)
	if !g.Terminal() {
		t.Fatal("game not terminal after disconnect")
	}
	seg, ok := s2.last()
	if !ok || seg.Type != wire.TypeERR || string(seg.Data) != MsgSecondClientGone {
		t.Fatalf("opponent got %+v, %v", seg, ok)
	}

	g.NotifyDisconnect(1)
	if n := len(s2.sent); n != 1 {
		t.Fatalf("opponent received %d sends, want 1", n)
	}
}

func TestLeaveClearsSlotAndDecrementsCount(t *testing.T) {
	g := New()
	p1, _ := newPeer("a")
	p2, _ := newPeer("b")
	g.Attach(p1)
	g.Attach(p2)

	if remaining := g.Leave(0); remaining != 1 {
		t.Fatalf("remaining = %d, want 1", remaining)
	}
	if p := g.Peer(0); p != nil {
		t.Fatalf("slot 0 not cleared: %+v", p)
	}
	if remaining := g.Leave(0); remaining != 1 {
		t.Fatalf("Leave on empty slot should be a no-op, got %d", remaining)
	}
}

func TestStopChClosesExactlyOnceOnTerminal(t *testing.T) {
	g := New()
	select {
	case <-g.StopCh():
		t.Fatal("stop channel closed before any termination")
	default:
	}
	g.Terminate()
	select {
	case <-g.StopCh():
	default:
		t.Fatal("stop channel not closed after Terminate")
	}
	// Must not panic from a double-close.
	g.Terminate()
	g.DropForAbuse(0)
}
