package guard

import "sync"

// Guard is the dual-authorization gate consulted before any
// capital-affecting action: the persisted backend execution flag and the
// transient UI armed flag must both be set.
type Guard struct {
	mu             sync.Mutex
	backendEnabled bool
	uiArmed        bool
}

// New returns a Guard with the backend flag preset (typically from
// config) and the armed flag off.
func New(backendEnabled bool) *Guard {
	return &Guard{backendEnabled: backendEnabled}
}

// Allowed checks both authorization flags and returns a reason either
// way. A true uiArmed overrides for this call; false falls back to the
// stored last-write-wins value.
func (g *Guard) Allowed(uiArmed bool) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.backendEnabled {
		return false, "backend execution is disabled"
	}

	armed := uiArmed
	if !armed {
		armed = g.uiArmed
	}
	if !armed {
		return false, "ui is not armed"
	}
	return true, "execution authorized"
}

// SetBackendEnabled flips the persisted execution flag (admin surface).
func (g *Guard) SetBackendEnabled(enabled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.backendEnabled = enabled
}

// BackendEnabled reports the current backend flag.
func (g *Guard) BackendEnabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.backendEnabled
}

// SetArmed stores the UI armed flag. Last write wins; no history.
func (g *Guard) SetArmed(armed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.uiArmed = armed
}

// Armed reports the stored UI armed flag.
func (g *Guard) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.uiArmed
}
