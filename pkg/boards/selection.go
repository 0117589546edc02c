package boards

import (
	"time"
)

// GuardState is the state of the selection-echo guard. Toggling the
// checklist programmatically updates the canvas selection, and the canvas
// reports that update back; without the guard the two surfaces oscillate.
type GuardState int

const (
	// GuardIdle means canvas selection events are applied normally.
	GuardIdle GuardState = iota
	// GuardListApplied means a checklist toggle was just applied and the
	// next canvas selection event inside the window is its echo.
	GuardListApplied
)

// DefaultEchoWindow bounds how long a checklist toggle suppresses canvas
// echo events when the echo never arrives.
const DefaultEchoWindow = 150 * time.Millisecond

// SelectionGuard suppresses the canvas echo of a checklist toggle. The echo
// is consumed exactly once: either the first canvas event inside the window
// is swallowed, or the window expires and canvas events flow again.
type SelectionGuard struct {
	state    GuardState
	deadline time.Time
	window   time.Duration
	now      func() time.Time
}

// NewSelectionGuard creates a guard with the given echo window. A zero
// window uses DefaultEchoWindow. The clock is injectable for tests via
// WithClock.
func NewSelectionGuard(window time.Duration) *SelectionGuard {
	if window <= 0 {
		window = DefaultEchoWindow
	}
	return &SelectionGuard{
		state:  GuardIdle,
		window: window,
		now:    time.Now,
	}
}

// WithClock replaces the guard's clock and returns the guard.
func (g *SelectionGuard) WithClock(now func() time.Time) *SelectionGuard {
	g.now = now
	return g
}

// ArmListToggle records that the checklist just originated a selection
// change. Called before applying the toggle.
func (g *SelectionGuard) ArmListToggle() {
	g.state = GuardListApplied
	g.deadline = g.now().Add(g.window)
}

// ConsumeCanvasEvent reports whether an incoming canvas selection event is
// the echo of a checklist toggle and must be ignored. A suppressed event
// clears the guard, so at most one event is swallowed per toggle.
func (g *SelectionGuard) ConsumeCanvasEvent() bool {
	if g.state != GuardListApplied {
		return false
	}
	g.state = GuardIdle
	return g.now().Before(g.deadline)
}

// State returns the current guard state, resolving an expired window to
// GuardIdle.
func (g *SelectionGuard) State() GuardState {
	if g.state == GuardListApplied && !g.now().Before(g.deadline) {
		return GuardIdle
	}
	return g.state
}

// ColumnsForNodes translates a canvas node-id selection into the owning
// columns among the given board columns, preserving board order and
// dropping duplicates and non-column nodes. ownerOf maps a node id to its
// owning column ("" for extras).
func ColumnsForNodes(nodeIDs []string, boardColumns []string, ownerOf func(nodeID string) string) []string {
	selected := make(map[string]bool)
	for _, id := range nodeIDs {
		if col := ownerOf(id); col != "" {
			selected[col] = true
		}
	}
	out := make([]string, 0, len(selected))
	for _, c := range boardColumns {
		if selected[c] {
			out = append(out, c)
		}
	}
	return out
}
