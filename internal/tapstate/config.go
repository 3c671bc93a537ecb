package tapstate

import "time"

// Configuration & lifecycle (§4.4). All setters here take effect
// immediately except SetMap, which only swaps the active map while the
// FSM is IDLE (I4) — ApplyPendingMap is also invoked from the frame
// package's PostProcessState hook, per "checked on every map-update call
// and on every post-frame hook".

// TapEnabled reports whether tapping is enabled (independent of suspend).
func (m *Machine) TapEnabled() bool { return m.enabled }

// Suspended reports whether the machine is currently suspended.
func (m *Machine) Suspended() bool { return m.suspended }

// Active reports whether tapping is currently live: enabled && !suspended.
func (m *Machine) Active() bool { return m.enabled && !m.suspended }

// SetTapEnabled enables or disables tapping. Disabling balances any held
// synthetic button via the full release-all path; enabling only resets
// bookkeeping, since nothing should be held while tapping was off.
func (m *Machine) SetTapEnabled(enabled bool, now time.Time) {
	if enabled == m.enabled {
		return
	}
	m.enabled = enabled
	if enabled {
		m.freshStart()
	} else {
		m.ReleaseAll(now)
	}
}

// DefaultTapEnabled implements §4.4's default: enabled iff the device has
// no physical left button. It is a pure function of a device query, kept
// outside Machine state since this package does not talk to hardware.
func DefaultTapEnabled(hasLeftButton bool) bool {
	return !hasLeftButton
}

// Map returns the currently active button map.
func (m *Machine) Map() ButtonMap { return m.btnMap }

// SetMap records the desired map and applies it immediately if the
// machine is idle; otherwise the swap is deferred until it returns to
// IDLE (I4).
func (m *Machine) SetMap(bm ButtonMap) {
	m.wantMap = bm
	m.ApplyPendingMap()
}

// ApplyPendingMap performs the deferred swap (§4.4, I4): it is called
// here and again by the frame driver's PostProcessState hook, since the
// machine may still not be IDLE when SetMap was first called.
func (m *Machine) ApplyPendingMap() {
	if m.state == IDLE {
		m.btnMap = m.wantMap
	}
}

// DefaultMap is the spec's default: {L, R, M}.
func DefaultMap() ButtonMap { return MapLRM }

// DragEnabled and SetDragEnabled control tap-and-drag (§4.4, default true).
func (m *Machine) DragEnabled() bool          { return m.dragEnabled }
func (m *Machine) SetDragEnabled(enabled bool) { m.dragEnabled = enabled }
func DefaultDragEnabled() bool                { return true }

// DragLockEnabled and SetDragLockEnabled control drag-lock (default false).
func (m *Machine) DragLockEnabled() bool           { return m.dragLockEnabled }
func (m *Machine) SetDragLockEnabled(enabled bool) { m.dragLockEnabled = enabled }
func DefaultDragLockEnabled() bool                 { return false }

// Dragging reports whether the machine is in any dragging-family state
// (§6.1).
func (m *Machine) Dragging() bool {
	switch m.state {
	case Dragging, Dragging2, DraggingWait, DraggingOrTap:
		return true
	default:
		return false
	}
}

// Count implements §6.1's count(): the machine is specified only up to
// three simultaneous fingers, so raw touch counts above that are capped.
func Count(numTouches int) int {
	if numTouches < 0 {
		return 0
	}
	if numTouches > 3 {
		return 3
	}
	return numTouches
}

// Suspend and Resume implement §4.4's suspend/resume semantics. suspend
// leaves enabled untouched and simply forces Active to false; if tapping
// was live beforehand it goes through the full release-all path so no
// button is left stuck pressed. resume is the inverse: if Active becomes
// true, it runs the (button-free) fresh-start reset.
func (m *Machine) Suspend(now time.Time) {
	if m.suspended {
		return
	}
	wasActive := m.Active()
	m.suspended = true
	if wasActive {
		m.ReleaseAll(now)
	}
}

func (m *Machine) Resume(now time.Time) {
	if !m.suspended {
		return
	}
	m.suspended = false
	if m.Active() {
		m.freshStart()
	}
}

// ReleaseAll is §4.4's release-all path: balance every held synthetic
// button, disqualify every live touch, and reset to IDLE with zero
// fingers down. Used when tapping transitions enabled->disabled.
func (m *Machine) ReleaseAll(now time.Time) {
	for n := 1; n <= 3; n++ {
		if m.buttonsPressed&buttonBit(n) != 0 {
			m.release(n, now)
		}
	}
	m.freshStart()
}

// freshStart implements the disabled->enabled path: the host has no idea
// which touches were in-flight, so every live touch is disqualified and
// bookkeeping resets to a clean IDLE, but no button is emitted — nothing
// should have been held while tapping was off.
func (m *Machine) freshStart() {
	for _, touch := range m.touches {
		touch.isPalm = true
		touch.tapState = TapDead
	}
	m.state = IDLE
	m.nfingersDown = 0
	m.clearTimer()
}
