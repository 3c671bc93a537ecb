package tapstate

import "time"

// cellFn executes one (state, event) transition's actions and sets the
// resulting state directly. A nil cell is the normative table's blank
// cell: stay in state, no actions.
//
// This is the data-driven encoding the design notes call for: Step does
// a single table lookup, and only the handful of conditional cells
// (§4.1a–d) branch internally.
type cellFn func(m *Machine, touchID int, now time.Time)

var transitionTable [15][8]cellFn

func init() {
	t := &transitionTable

	// IDLE
	t[IDLE][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH
		m.savePress(now)
		m.setTapTimer(now)
	}
	t[IDLE][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.bug(EventMotion) }
	t[IDLE][EventButton] = func(m *Machine, touchID int, now time.Time) { m.state = Dead }
	t[IDLE][EventThumb] = func(m *Machine, touchID int, now time.Time) { m.bug(EventThumb) }
	t[IDLE][EventPalm] = func(m *Machine, touchID int, now time.Time) { m.state = IDLE }

	// TOUCH
	t[TOUCH][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH2
		m.savePress(now)
		m.setTapTimer(now)
	}
	t[TOUCH][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.deadCurrent(touchID) }
	t[TOUCH][EventRelease] = tapOrDragRelease
	t[TOUCH][EventTimeout] = func(m *Machine, touchID int, now time.Time) {
		m.state = HOLD
		m.clearTimer()
	}
	t[TOUCH][EventButton] = func(m *Machine, touchID int, now time.Time) { m.state = Dead }
	t[TOUCH][EventThumb] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		touch := m.touchFor(touchID)
		touch.isThumb = true
		touch.tapState = TapDead
		m.dropFinger()
		m.clearTimer()
	}
	t[TOUCH][EventPalm] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		m.clearTimer()
	}

	// HOLD
	t[HOLD][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH2
		m.savePress(now)
		m.setTapTimer(now)
	}
	t[HOLD][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.deadCurrent(touchID) }
	t[HOLD][EventRelease] = func(m *Machine, touchID int, now time.Time) { m.state = IDLE }
	t[HOLD][EventButton] = func(m *Machine, touchID int, now time.Time) { m.state = Dead }
	t[HOLD][EventThumb] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		touch := m.touchFor(touchID)
		touch.isThumb = true
		touch.tapState = TapDead
		m.dropFinger()
	}
	t[HOLD][EventPalm] = func(m *Machine, touchID int, now time.Time) { m.state = IDLE }

	// TAPPED
	t[TAPPED][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = DraggingOrDoubletap
		m.savePress(now)
		m.setTapTimer(now)
	}
	t[TAPPED][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.bug(EventMotion) }
	t[TAPPED][EventRelease] = func(m *Machine, touchID int, now time.Time) { m.bug(EventRelease) }
	t[TAPPED][EventTimeout] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		m.release(1, m.savedReleaseTime)
	}
	t[TAPPED][EventButton] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.release(1, m.savedReleaseTime)
	}
	t[TAPPED][EventThumb] = func(m *Machine, touchID int, now time.Time) { m.bug(EventThumb) }

	// TOUCH_2
	t[TOUCH2][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH3
		m.savePress(now)
		m.setTapTimer(now)
	}
	t[TOUCH2][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.deadCurrent(touchID) }
	t[TOUCH2][EventRelease] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH2Release
		m.saveRelease(now)
		m.setTapTimer(now)
	}
	t[TOUCH2][EventTimeout] = func(m *Machine, touchID int, now time.Time) { m.state = TOUCH2Hold }
	t[TOUCH2][EventButton] = func(m *Machine, touchID int, now time.Time) { m.state = Dead }
	t[TOUCH2][EventPalm] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH
		m.setTapTimer(now)
	}

	// TOUCH_2_HOLD
	t[TOUCH2Hold][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH3
		m.savePress(now)
		m.setTapTimer(now)
	}
	t[TOUCH2Hold][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.deadCurrent(touchID) }
	t[TOUCH2Hold][EventRelease] = func(m *Machine, touchID int, now time.Time) { m.state = HOLD }
	t[TOUCH2Hold][EventTimeout] = func(m *Machine, touchID int, now time.Time) { m.state = TOUCH2Hold }
	t[TOUCH2Hold][EventButton] = func(m *Machine, touchID int, now time.Time) { m.state = Dead }
	t[TOUCH2Hold][EventPalm] = func(m *Machine, touchID int, now time.Time) { m.state = HOLD }

	// TOUCH_2_RELEASE
	t[TOUCH2Release][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH2Hold
		m.touchFor(touchID).tapState = TapDead
		m.clearTimer()
	}
	t[TOUCH2Release][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.deadCurrent(touchID) }
	t[TOUCH2Release][EventRelease] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		m.press(2, m.savedPressTime)
		m.release(2, m.savedReleaseTime)
	}
	t[TOUCH2Release][EventTimeout] = func(m *Machine, touchID int, now time.Time) { m.state = HOLD }
	t[TOUCH2Release][EventButton] = func(m *Machine, touchID int, now time.Time) { m.state = Dead }
	// §9 open question: saved_press_time here may be the palm's press
	// time rather than the remaining finger's. Preserved as-is, see
	// TestTouch2ReleasePalmReusesPressTime.
	t[TOUCH2Release][EventPalm] = tapOrDragRelease

	// TOUCH_3
	t[TOUCH3][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.clearTimer()
	}
	t[TOUCH3][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.deadCurrent(touchID) }
	t[TOUCH3][EventRelease] = touch3Release
	t[TOUCH3][EventTimeout] = func(m *Machine, touchID int, now time.Time) {
		m.state = TOUCH3Hold
		m.clearTimer()
	}
	t[TOUCH3][EventButton] = func(m *Machine, touchID int, now time.Time) { m.state = Dead }
	t[TOUCH3][EventPalm] = func(m *Machine, touchID int, now time.Time) { m.state = TOUCH2 }

	// TOUCH_3_HOLD
	t[TOUCH3Hold][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.setTapTimer(now)
	}
	t[TOUCH3Hold][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.deadCurrent(touchID) }
	t[TOUCH3Hold][EventRelease] = func(m *Machine, touchID int, now time.Time) { m.state = TOUCH2Hold }
	t[TOUCH3Hold][EventButton] = func(m *Machine, touchID int, now time.Time) { m.state = Dead }
	t[TOUCH3Hold][EventPalm] = func(m *Machine, touchID int, now time.Time) { m.state = TOUCH2Hold }

	// DRAGGING_OR_DOUBLETAP
	t[DraggingOrDoubletap][EventTouch] = func(m *Machine, touchID int, now time.Time) { m.state = Dragging2 }
	t[DraggingOrDoubletap][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.state = Dragging }
	t[DraggingOrDoubletap][EventRelease] = func(m *Machine, touchID int, now time.Time) {
		m.state = TAPPED
		m.release(1, m.savedReleaseTime)
		m.press(1, m.savedPressTime)
		m.saveRelease(now)
		m.setTapTimer(now)
	}
	t[DraggingOrDoubletap][EventTimeout] = func(m *Machine, touchID int, now time.Time) { m.state = Dragging }
	t[DraggingOrDoubletap][EventButton] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.release(1, m.savedReleaseTime)
	}
	t[DraggingOrDoubletap][EventPalm] = func(m *Machine, touchID int, now time.Time) { m.state = TAPPED }

	// DRAGGING
	t[Dragging][EventTouch] = func(m *Machine, touchID int, now time.Time) { m.state = Dragging2 }
	t[Dragging][EventRelease] = draggingRelease
	t[Dragging][EventButton] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.release(1, now)
	}
	t[Dragging][EventPalm] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		m.release(1, m.savedReleaseTime)
	}

	// DRAGGING_WAIT
	t[DraggingWait][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = DraggingOrTap
		m.setTapTimer(now)
	}
	t[DraggingWait][EventTimeout] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		m.release(1, now)
	}
	t[DraggingWait][EventButton] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.release(1, now)
	}

	// DRAGGING_OR_TAP
	t[DraggingOrTap][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dragging2
		m.clearTimer()
	}
	t[DraggingOrTap][EventMotion] = func(m *Machine, touchID int, now time.Time) { m.state = Dragging }
	t[DraggingOrTap][EventRelease] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		m.release(1, now)
	}
	t[DraggingOrTap][EventTimeout] = func(m *Machine, touchID int, now time.Time) { m.state = Dragging }
	t[DraggingOrTap][EventButton] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.release(1, now)
	}
	t[DraggingOrTap][EventPalm] = func(m *Machine, touchID int, now time.Time) {
		m.state = IDLE
		m.release(1, m.savedReleaseTime)
	}

	// DRAGGING_2
	t[Dragging2][EventTouch] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.release(1, now)
	}
	t[Dragging2][EventRelease] = func(m *Machine, touchID int, now time.Time) { m.state = Dragging }
	t[Dragging2][EventButton] = func(m *Machine, touchID int, now time.Time) {
		m.state = Dead
		m.release(1, now)
	}
	t[Dragging2][EventPalm] = func(m *Machine, touchID int, now time.Time) { m.state = DraggingOrDoubletap }

	// DEAD
	t[Dead][EventRelease] = deadRowCheckIdle
	t[Dead][EventPalm] = deadRowCheckIdle
	t[Dead][EventPalmUp] = deadRowCheckIdle
}

// tapOrDragRelease implements §4.1a (TOUCH+RELEASE) and §4.1b
// (TOUCH_2_RELEASE+PALM), which share identical behavior: emit the
// buffered single-finger press, then either hand off to TAPPED to await
// a possible drag, or release immediately if dragging is disabled.
func tapOrDragRelease(m *Machine, touchID int, now time.Time) {
	m.press(1, m.savedPressTime)
	if m.dragEnabled {
		m.state = TAPPED
		m.saveRelease(now)
		m.setTapTimer(now)
	} else {
		m.release(1, now)
		m.state = IDLE
	}
}

// touch3Release implements §4.1c: a third finger lifting only emits a
// button if it was still a live tap candidate when it lifted.
func touch3Release(m *Machine, touchID int, now time.Time) {
	if m.TapState(touchID) == TapTouch {
		m.press(3, m.savedPressTime)
		m.release(3, now)
	}
	m.state = TOUCH2Hold
}

// draggingRelease implements §4.1d: drag-lock keeps the button pressed
// through a grace window instead of releasing immediately.
func draggingRelease(m *Machine, touchID int, now time.Time) {
	if m.dragLockEnabled {
		m.state = DraggingWait
		m.setDragTimer(now)
	} else {
		m.release(1, now)
		m.state = IDLE
	}
}

// deadRowCheckIdle implements the DEAD row's "if nfingers_down==0 → IDLE"
// cells for RELEASE, PALM and PALM_UP.
func deadRowCheckIdle(m *Machine, touchID int, now time.Time) {
	if m.nfingersDown == 0 {
		m.state = IDLE
	}
}

// Step is the single entry point for all 8 event kinds (§4.1). It looks
// up the (state, event) cell, runs its actions if any, then applies the
// global post-step rule: IDLE or DEAD unconditionally clears the timer,
// even if the cell itself armed it (e.g. TOUCH_3_HOLD+TOUCH sets a tap
// timer on its way to DEAD).
func (m *Machine) Step(ev Event, touchID int, now time.Time) {
	prev := m.state
	m.pendingActions = m.pendingActions[:0]

	if fn := transitionTable[m.state][ev]; fn != nil {
		fn(m, touchID, now)
	}
	if m.state == IDLE || m.state == Dead {
		m.clearTimer()
	}

	if m.observer != nil {
		m.observer.OnTransition(Transition{
			Time: now, State: prev, Event: ev, Next: m.state,
			TouchID: touchID, Actions: append([]string(nil), m.pendingActions...),
		})
	}
}
