package game

import "sync"

// Registry holds a fixed-size collection of Game slots — spec.md §2 is
// explicit that this is an array, not a map, mirroring the original C
// server's `struct AcceptedSocket acceptedSockets[MAX_CLIENTS]` shape one
// level up (one slot per concurrent Game instead of per socket). The
// teacher's equivalent, PeerManager (node/p2p_runtime.go), uses a dynamic
// map of peers; Registry is PeerManager's pairing/reaping logic adapted to
// a bounded array because spec.md caps concurrent games at MAX_GAMES.
type Registry struct {
	mu    sync.Mutex
	games []*Game
	peers int
}

// NewRegistry returns a Registry with capacity open slots, all initially
// empty.
func NewRegistry(capacity int) *Registry {
	return &Registry{games: make([]*Game, capacity)}
}

// ErrRegistryFull is returned by Pair when every slot holds a non-terminal
// Game.
type ErrRegistryFull struct{}

func (ErrRegistryFull) Error() string { return "game: registry at capacity" }

// Pair returns a Game for a newly accepted peer to join: an existing Game
// that is still waiting for its second peer, or a freshly allocated one in
// the first open slot. The caller must still call Attach on the returned
// Game; Pair only reserves the slot.
func (r *Registry) Pair() (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, g := range r.games {
		if g != nil && !g.Terminal() && g.Count() == 1 {
			r.peers++
			return g, nil
		}
	}

	for i, g := range r.games {
		if g == nil {
			ng := New()
			r.games[i] = ng
			r.peers++
			return ng, nil
		}
	}

	return nil, ErrRegistryFull{}
}

// PeerCount returns the total number of peers attached across every Game in
// the Registry, used by Reap's invariant check and by diagnostics.
func (r *Registry) PeerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peers
}

// ReleasePeer decrements the global peer count after a worker has called
// Game.Leave. Reap does not do this itself since Leave's return value
// (the Game's own remaining count) does not tell the Registry how many
// peers left in total across repeated calls.
func (r *Registry) ReleasePeer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.peers > 0 {
		r.peers--
	}
}

// Reap frees every slot holding a terminal, empty Game, making room for new
// pairings. It is invoked only from the dispatcher's accept loop, never
// from a worker goroutine, so a Game can never free itself while one of its
// own workers still holds a reference to it (spec.md §5's "dispatcher-only
// reaping" rule).
func (r *Registry) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	freed := 0
	for i, g := range r.games {
		if g != nil && g.Terminal() && g.Count() == 0 {
			r.games[i] = nil
			freed++
		}
	}
	return freed
}

// Games returns a snapshot of every non-nil Game slot, for diagnostics and
// tests that need to inspect live session state directly.
func (r *Registry) Games() []*Game {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		if g != nil {
			out = append(out, g)
		}
	}
	return out
}

// TotalGameCount returns the number of occupied (non-nil) slots, terminal
// or not — used by tests asserting the registry never exceeds capacity.
func (r *Registry) TotalGameCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, g := range r.games {
		if g != nil {
			n++
		}
	}
	return n
}

// TerminateAll marks every live Game terminal, for process-wide shutdown.
// It snapshots the slot pointers under the registry lock and then releases
// it before calling into each Game, preserving the "registry lock before
// Game lock, never nested" ordering from spec.md §5.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	snapshot := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		if g != nil {
			snapshot = append(snapshot, g)
		}
	}
	r.mu.Unlock()

	for _, g := range snapshot {
		g.Terminate()
	}
}
