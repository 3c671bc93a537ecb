package tapstate

import (
	"testing"
	"time"
)

// fakeSink records every NotifyButton call in order, for assertions
// against the exact press/release sequence a scenario should produce.
type fakeSink struct {
	events []buttonEvent
}

type buttonEvent struct {
	ts    time.Time
	code  ButtonCode
	state ButtonState
}

func (f *fakeSink) NotifyButton(t time.Time, code ButtonCode, state ButtonState) {
	f.events = append(f.events, buttonEvent{t, code, state})
}

func newTestMachine() (*Machine, *fakeSink) {
	sink := &fakeSink{}
	m := NewMachine(sink, true)
	return m, sink
}

func at(ms int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(ms) * time.Millisecond)
}

// Scenario 1: a clean single tap with no drag follow-up emits one
// press+release pair once the tap timeout elapses in TAPPED.
func TestSingleTap(t *testing.T) {
	m, sink := newTestMachine()

	m.AdmitTouch(1, Point{}, at(0))
	if m.State() != TOUCH {
		t.Fatalf("state after admit = %v, want TOUCH", m.State())
	}
	m.ReleaseTouch(1, true, at(20))
	if m.State() != TAPPED {
		t.Fatalf("state after release = %v, want TAPPED", m.State())
	}
	if len(sink.events) != 1 || sink.events[0].state != ButtonPressed {
		t.Fatalf("expected one press after release, got %v", sink.events)
	}

	m.OnTimerFired(at(20 + int(TapTimeout/time.Millisecond)))
	if m.State() != IDLE {
		t.Fatalf("state after tap timeout = %v, want IDLE", m.State())
	}
	if len(sink.events) != 2 || sink.events[1].state != ButtonReleased {
		t.Fatalf("expected press+release, got %v", sink.events)
	}
	if sink.events[0].code != ButtonLeft || sink.events[1].code != ButtonLeft {
		t.Fatalf("expected LEFT button, got %v", sink.events)
	}
}

// Scenario: double tap. DRAGGING_OR_DOUBLETAP's RELEASE cell releases the
// first tap's button and presses it again for the second tap, so the
// double tap emits two press/release pairs.
func TestDoubleTap(t *testing.T) {
	m, sink := newTestMachine()

	m.AdmitTouch(1, Point{}, at(0))
	m.ReleaseTouch(1, true, at(20))
	if m.State() != TAPPED {
		t.Fatalf("state = %v, want TAPPED", m.State())
	}

	m.AdmitTouch(2, Point{}, at(40))
	if m.State() != DraggingOrDoubletap {
		t.Fatalf("state after second touch = %v, want DRAGGING_OR_DOUBLETAP", m.State())
	}

	m.ReleaseTouch(2, true, at(60))
	if m.State() != TAPPED {
		t.Fatalf("state after second release = %v, want TAPPED", m.State())
	}

	m.OnTimerFired(at(60 + int(TapTimeout/time.Millisecond)))
	if m.State() != IDLE {
		t.Fatalf("state = %v, want IDLE", m.State())
	}

	var presses, releases int
	for _, e := range sink.events {
		if e.state == ButtonPressed {
			presses++
		} else {
			releases++
		}
	}
	if presses != 2 || releases != 2 {
		t.Fatalf("expected 2 press + 2 release across the double tap, got %v", sink.events)
	}
}

// Scenario: tap-and-drag. After the tap, a second touch that moves
// instead of releasing takes DraggingOrDoubletap's MOTION cell into
// DRAGGING.
func TestTapAndDrag(t *testing.T) {
	m, sink := newTestMachine()

	m.AdmitTouch(1, Point{}, at(0))
	m.ReleaseTouch(1, true, at(20))
	m.AdmitTouch(2, Point{X: 0, Y: 0}, at(40))
	if m.State() != DraggingOrDoubletap {
		t.Fatalf("state = %v, want DRAGGING_OR_DOUBLETAP", m.State())
	}

	m.Step(EventMotion, 2, at(45))
	if m.State() != Dragging {
		t.Fatalf("state after motion = %v, want DRAGGING", m.State())
	}
	// The held button from the first tap must still be pressed, not
	// re-emitted or released by entering DRAGGING.
	if len(sink.events) != 1 || sink.events[0].state != ButtonPressed {
		t.Fatalf("expected exactly one held press, got %v", sink.events)
	}

	m.ReleaseTouch(2, true, at(200))
	if m.State() != IDLE {
		t.Fatalf("state after drag release = %v, want IDLE", m.State())
	}
	if len(sink.events) != 2 || sink.events[1].state != ButtonReleased {
		t.Fatalf("expected press+release for the drag, got %v", sink.events)
	}
}

// Scenario 6: motion past the threshold while a single finger is still a
// live tap candidate kills the whole gesture, not just that finger's
// bookkeeping — the FSM itself moves to DEAD, so the eventual release
// falls through DEAD's RELEASE cell and never emits a button.
func TestMotionKillsTap(t *testing.T) {
	m, sink := newTestMachine()

	m.AdmitTouch(1, Point{}, at(0))
	if m.State() != TOUCH {
		t.Fatalf("state = %v, want TOUCH", m.State())
	}

	m.Step(EventMotion, 1, at(20))
	if m.TapState(1) != TapDead {
		t.Fatalf("tap state = %v, want DEAD", m.TapState(1))
	}
	if m.State() != Dead {
		t.Fatalf("state = %v, want DEAD (motion kills the whole gesture)", m.State())
	}

	m.ReleaseTouch(1, true, at(40))
	if m.State() != IDLE {
		t.Fatalf("state = %v, want IDLE once the killed touch lifts", m.State())
	}
	if len(sink.events) != 0 {
		t.Fatalf("a tap killed by motion must never emit a button, got %v", sink.events)
	}
}

// Scenario: drag-lock. Releasing while dragging arms the drag timer
// instead of releasing immediately; a touch within the window resumes
// the drag without re-pressing.
func TestDragLock(t *testing.T) {
	m, sink := newTestMachine()
	m.SetDragLockEnabled(true)

	m.AdmitTouch(1, Point{}, at(0))
	m.ReleaseTouch(1, true, at(20))
	m.AdmitTouch(2, Point{}, at(40))
	m.Step(EventMotion, 2, at(45))
	if m.State() != Dragging {
		t.Fatalf("state = %v, want DRAGGING", m.State())
	}

	m.ReleaseTouch(2, true, at(100))
	if m.State() != DraggingWait {
		t.Fatalf("state after drag-lock release = %v, want DRAGGING_WAIT", m.State())
	}
	if len(sink.events) != 1 {
		t.Fatalf("drag-lock release must not emit a button yet, got %v", sink.events)
	}

	m.AdmitTouch(3, Point{}, at(150))
	if m.State() != DraggingOrTap {
		t.Fatalf("state after re-touch = %v, want DRAGGING_OR_TAP", m.State())
	}
	if len(sink.events) != 1 {
		t.Fatalf("resuming the drag must not touch the button, got %v", sink.events)
	}

	m.ReleaseTouch(3, true, at(160))
	if m.State() != IDLE {
		t.Fatalf("state = %v, want IDLE", m.State())
	}
	if len(sink.events) != 2 || sink.events[1].state != ButtonReleased {
		t.Fatalf("expected the drag to finally release, got %v", sink.events)
	}
}

// Scenario: drag-lock's timeout without a re-touch releases the button
// and returns to IDLE.
func TestDragLockTimeoutReleases(t *testing.T) {
	m, sink := newTestMachine()
	m.SetDragLockEnabled(true)

	m.AdmitTouch(1, Point{}, at(0))
	m.ReleaseTouch(1, true, at(20))
	m.AdmitTouch(2, Point{}, at(40))
	m.Step(EventMotion, 2, at(45))
	m.ReleaseTouch(2, true, at(100))
	if m.State() != DraggingWait {
		t.Fatalf("state = %v, want DRAGGING_WAIT", m.State())
	}

	m.OnTimerFired(at(100 + int(DragTimeout/time.Millisecond)))
	if m.State() != IDLE {
		t.Fatalf("state = %v, want IDLE", m.State())
	}
	if len(sink.events) != 2 || sink.events[1].state != ButtonReleased {
		t.Fatalf("expected drag timeout to release, got %v", sink.events)
	}
}

// Scenario: a three-finger tap walks TOUCH_3 -> TOUCH_2_HOLD -> HOLD ->
// IDLE as the fingers lift one by one.
func TestThreeFingerTap(t *testing.T) {
	m, _ := newTestMachine()

	m.AdmitTouch(1, Point{}, at(0))
	m.AdmitTouch(2, Point{}, at(5))
	m.AdmitTouch(3, Point{}, at(10))
	if m.State() != TOUCH3 {
		t.Fatalf("state = %v, want TOUCH_3", m.State())
	}

	m.ReleaseTouch(3, true, at(20))
	if m.State() != TOUCH2Hold {
		t.Fatalf("state = %v, want TOUCH_2_HOLD", m.State())
	}

	m.ReleaseTouch(2, true, at(25))
	if m.State() != HOLD {
		t.Fatalf("state = %v, want HOLD", m.State())
	}
	m.ReleaseTouch(1, true, at(30))
	if m.State() != IDLE {
		t.Fatalf("state = %v, want IDLE", m.State())
	}
}

// Scenario 7: a palm arriving after a single-finger press suppresses the
// tap entirely — no button is ever emitted for the lifted finger.
func TestPalmAfterSingleFingerPress(t *testing.T) {
	m, sink := newTestMachine()

	m.AdmitTouch(1, Point{}, at(0))
	m.MarkPalm(1, false, at(10))
	if m.State() != IDLE {
		t.Fatalf("state after palm = %v, want IDLE", m.State())
	}

	m.touchFor(1).isPalm = true
	m.Step(EventPalmUp, 1, at(50))
	if len(sink.events) != 0 {
		t.Fatalf("palm-only gesture must emit no buttons, got %v", sink.events)
	}
}

// Boundary: a tap released exactly at TapTimeout must NOT have timed out
// yet (the FSM only reacts to an explicit TIMEOUT event, and §4.1's
// boundary test asks for strict > semantics at the caller level).
func TestTapTimeoutBoundary(t *testing.T) {
	m, _ := newTestMachine()
	m.AdmitTouch(1, Point{}, at(0))
	// Releasing exactly at the deadline is still a tap, not a timeout,
	// because no TIMEOUT event was actually injected.
	m.ReleaseTouch(1, true, at(int(TapTimeout/time.Millisecond)))
	if m.State() != TAPPED {
		t.Fatalf("state = %v, want TAPPED (release beats timer)", m.State())
	}
}

// Property P6 (suspend/resume spirit): disabling tapping while a button
// is held balances it; re-enabling starts clean with no spurious button.
func TestSetTapEnabledBalancesHeldButton(t *testing.T) {
	m, sink := newTestMachine()
	m.AdmitTouch(1, Point{}, at(0))
	m.ReleaseTouch(1, true, at(20))
	if len(sink.events) != 1 {
		t.Fatalf("expected the tap's press, got %v", sink.events)
	}

	m.SetTapEnabled(false, at(30))
	if len(sink.events) != 2 || sink.events[1].state != ButtonReleased {
		t.Fatalf("disabling must balance the held button, got %v", sink.events)
	}
	if m.State() != IDLE {
		t.Fatalf("state after disable = %v, want IDLE", m.State())
	}

	m.SetTapEnabled(true, at(40))
	if len(sink.events) != 2 {
		t.Fatalf("re-enabling must not emit a button, got %v", sink.events)
	}
}

func TestSuspendResumeNoSpuriousButtons(t *testing.T) {
	m, sink := newTestMachine()
	m.AdmitTouch(1, Point{}, at(0))
	m.ReleaseTouch(1, true, at(20))

	m.Suspend(at(25))
	if !m.Suspended() || m.Active() {
		t.Fatalf("expected suspended and inactive")
	}
	if len(sink.events) != 2 {
		t.Fatalf("suspend must balance the held button exactly once, got %v", sink.events)
	}

	m.Resume(at(30))
	if m.Suspended() || !m.Active() {
		t.Fatalf("expected resumed and active")
	}
	if len(sink.events) != 2 {
		t.Fatalf("resume must not emit a button, got %v", sink.events)
	}
}

func TestCount(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 2, 3: 3, 5: 3, -1: 0}
	for in, want := range cases {
		if got := Count(in); got != want {
			t.Errorf("Count(%d) = %d, want %d", in, got, want)
		}
	}
}

// §9's preserved open question: TOUCH_2_RELEASE+PALM reuses the
// tapOrDragRelease cell, which emits press(1, saved_press_time) using
// whatever savedPressTime was last recorded — potentially the second
// finger's press time, not necessarily the surviving finger's. This is
// a regression test for the behavior as specified, not a fix.
func TestTouch2ReleasePalmReusesPressTime(t *testing.T) {
	m, sink := newTestMachine()

	m.AdmitTouch(1, Point{}, at(0))
	m.AdmitTouch(2, Point{}, at(10)) // savedPressTime = 10
	if m.State() != TOUCH2 {
		t.Fatalf("state = %v, want TOUCH_2", m.State())
	}

	m.ReleaseTouch(2, true, at(20))
	if m.State() != TOUCH2Release {
		t.Fatalf("state = %v, want TOUCH_2_RELEASE", m.State())
	}

	m.MarkPalm(1, false, at(30))
	if len(sink.events) != 1 {
		t.Fatalf("expected exactly one press, got %v", sink.events)
	}
	if !sink.events[0].ts.Equal(at(10)) {
		t.Errorf("press ts = %v, want the second finger's press time %v (preserved quirk)", sink.events[0].ts, at(10))
	}
}

func TestMapSwapDeferredUntilIdle(t *testing.T) {
	m, _ := newTestMachine()
	if m.Map() != MapLRM {
		t.Fatalf("default map = %v, want LRM", m.Map())
	}

	m.AdmitTouch(1, Point{}, at(0))
	m.SetMap(MapLMR)
	if m.Map() != MapLRM {
		t.Fatalf("map swapped mid-gesture, want it deferred until IDLE")
	}

	m.ReleaseTouch(1, true, at(20))
	m.OnTimerFired(at(20 + int(TapTimeout/time.Millisecond)))
	if m.State() != IDLE {
		t.Fatalf("state = %v, want IDLE", m.State())
	}
	m.ApplyPendingMap()
	if m.Map() != MapLMR {
		t.Fatalf("map = %v, want LMR applied once idle", m.Map())
	}
}

func TestTransitionObserverReceivesEveryStep(t *testing.T) {
	var got []Transition
	obs := observerFunc(func(tr Transition) { got = append(got, tr) })
	sink := &fakeSink{}
	m := NewMachine(sink, true, WithTransitionObserver(obs))

	m.AdmitTouch(1, Point{}, at(0))
	if len(got) != 1 {
		t.Fatalf("expected one transition, got %d", len(got))
	}
	if got[0].State != IDLE || got[0].Next != TOUCH || got[0].Event != EventTouch {
		t.Errorf("unexpected transition record: %+v", got[0])
	}
}

type observerFunc func(Transition)

func (f observerFunc) OnTransition(tr Transition) { f(tr) }
