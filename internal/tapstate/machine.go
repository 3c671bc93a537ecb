package tapstate

import (
	"log/slog"
	"time"
)

// Machine is the tap-to-click finite-state machine's global state (§3.1).
// It owns its timer exclusively; nothing outside this package may arm or
// cancel it. All methods must be called from a single logical thread —
// there is no internal locking (§5).
type Machine struct {
	state State

	touches map[int]*touch

	nfingersDown     int
	savedPressTime   time.Time
	savedReleaseTime time.Time
	buttonsPressed   uint8 // bit (n-1) set iff the n-finger button is held

	btnMap  ButtonMap
	wantMap ButtonMap

	enabled         bool
	suspended       bool
	dragEnabled     bool
	dragLockEnabled bool

	timer *timerHandle
	sink  EventSink
	clock Clock
	log   *slog.Logger

	observer       TransitionObserver
	pendingActions []string
}

// Option configures a new Machine.
type Option func(*Machine)

// WithLogger attaches a structured logger; defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// WithClock overrides the default SystemClock, for tests.
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithTransitionObserver attaches a diagnostics observer; every Step
// reports one Transition to it, whether or not the cell emitted a
// button action.
func WithTransitionObserver(o TransitionObserver) Option {
	return func(m *Machine) { m.observer = o }
}

// NewMachine constructs an IDLE machine. enabled is the initial tap-enable
// state (§4.4: default true iff the device has no physical left button —
// the caller decides that and passes it in, since it is a device query
// this package deliberately does not make, see §6.2).
func NewMachine(sink EventSink, enabled bool, opts ...Option) *Machine {
	m := &Machine{
		state:           IDLE,
		touches:         make(map[int]*touch),
		btnMap:          MapLRM,
		wantMap:         MapLRM,
		enabled:         enabled,
		dragEnabled:     true,
		dragLockEnabled: false,
		timer:           newTimerHandle(),
		sink:            sink,
		clock:           SystemClock{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// State returns the current FSM state, mainly for logging and tests.
func (m *Machine) State() State { return m.state }

// TimerC is the channel the owning event loop selects on; a receive means
// the single timer fired and OnTimerFired must be called.
func (m *Machine) TimerC() <-chan time.Time { return m.timer.C() }

// touchFor returns (creating if absent) the bookkeeping for a touch slot.
func (m *Machine) touchFor(id int) *touch {
	t, ok := m.touches[id]
	if !ok {
		t = &touch{}
		m.touches[id] = t
	}
	return t
}

// FingersDown reports the FSM's own nfingers_down counter, for the frame
// driver's Synaptics-serial motion-threshold quirk (§4.2a), which needs
// to know whether more than two fingers are currently down.
func (m *Machine) FingersDown() int { return m.nfingersDown }

// TapState reports a touch's current per-touch admission state; callers
// outside this package use it read-only (e.g. §4.1c's "if the current
// touch's per-touch state is TOUCH").
func (m *Machine) TapState(touchID int) TapState {
	if t, ok := m.touches[touchID]; ok {
		return t.tapState
	}
	return TapIdle
}

// IsThumb and IsPalm report the latched classifications for a touch.
func (m *Machine) IsThumb(touchID int) bool {
	t, ok := m.touches[touchID]
	return ok && t.isThumb
}

func (m *Machine) IsPalm(touchID int) bool {
	t, ok := m.touches[touchID]
	return ok && t.isPalm
}

// ForgetTouch drops bookkeeping for a touch slot once the touch has
// ended; called by the frame driver, never by the FSM itself.
func (m *Machine) ForgetTouch(touchID int) {
	delete(m.touches, touchID)
}

// AdmitTouch registers a newly-begun touch as a tap candidate (frame
// driver §4.2g) and injects the matching TOUCH event.
func (m *Machine) AdmitTouch(touchID int, initial Point, now time.Time) {
	t := m.touchFor(touchID)
	t.tapState = TapTouch
	t.initial = initial
	m.nfingersDown++
	m.Step(EventTouch, touchID, now)
}

// dropFinger decrements nfingers_down, guarding the I2/invariant-violation
// case with a log-and-clamp rather than letting the count go negative
// (§7: invariant violations are assertions, log-and-continue in
// production).
func (m *Machine) dropFinger() {
	m.nfingersDown--
	if m.nfingersDown < 0 {
		m.log.Warn("nfingers_down went negative")
		m.nfingersDown = 0
	}
}

// ReleaseTouch handles a touch ending (frame driver §4.2h). wasDown
// reports whether the device had ever reported this touch down; if not,
// no accounting happens and no event is injected.
func (m *Machine) ReleaseTouch(touchID int, wasDown bool, now time.Time) {
	if !wasDown {
		return
	}
	m.dropFinger()
	m.Step(EventRelease, touchID, now)
	m.touchFor(touchID).tapState = TapIdle
}

// MarkPalm handles an external palm-detector classification arriving for
// a touch (frame driver §4.2f) and injects PALM. rawStateBegin reports
// whether this is the touch's BEGIN frame, which controls whether
// nfingers_down is decremented.
func (m *Machine) MarkPalm(touchID int, rawStateBegin bool, now time.Time) {
	t := m.touchFor(touchID)
	t.isPalm = true
	t.tapState = TapDead
	if !rawStateBegin {
		m.dropFinger()
	}
	m.Step(EventPalm, touchID, now)
}

// MarkThumbAtBegin latches a touch as a thumb before it is ever admitted
// (frame driver §4.2g's pre-classifier). No FSM event is injected — the
// touch contributes nothing to the machine for its whole lifetime (I6).
func (m *Machine) MarkThumbAtBegin(touchID int) {
	m.touchFor(touchID).isThumb = true
}

// KillTouch disqualifies a single touch without affecting any other
// touch or the FSM's own state (frame driver §4.2b: a queued click-pad
// button press disqualifies every dirty touch this frame).
func (m *Machine) KillTouch(touchID int) {
	m.touchFor(touchID).tapState = TapDead
}

// InitialPosition returns the position a touch had when it was admitted,
// for the frame driver's motion-threshold computation (§4.2a).
func (m *Machine) InitialPosition(touchID int) Point {
	return m.touchFor(touchID).initial
}

// KillAllTapCandidates disqualifies every touch that is still a live tap
// candidate, without changing the FSM's own state. Used both when motion
// kills a tap (frame driver §4.2j) and when the tap timer fires (§4.3).
func (m *Machine) KillAllTapCandidates() {
	for _, t := range m.touches {
		if t.tapState == TapTouch {
			t.tapState = TapDead
		}
	}
}

// OnTimerFired must be called by the owning event loop on every receive
// from TimerC(). It injects the single TIMEOUT event and then applies the
// "a timed-out frame cannot be rescued" rule of §4.3.
func (m *Machine) OnTimerFired(now time.Time) {
	m.Step(EventTimeout, -1, now)
	m.KillAllTapCandidates()
}

// buttonBit is the bitmask bit for an n-finger slot (1..3).
func buttonBit(n int) uint8 { return 1 << uint(n-1) }

func (m *Machine) press(n int, ts time.Time) {
	code := m.btnMap.Button(n)
	m.sink.NotifyButton(ts, code, ButtonPressed)
	m.buttonsPressed |= buttonBit(n)
	m.log.Debug("press", "n", n, "code", code, "ts", ts)
	m.pendingActions = append(m.pendingActions, "press:"+code.String())
}

func (m *Machine) release(n int, ts time.Time) {
	code := m.btnMap.Button(n)
	m.sink.NotifyButton(ts, code, ButtonReleased)
	m.buttonsPressed &^= buttonBit(n)
	m.log.Debug("release", "n", n, "code", code, "ts", ts)
	m.pendingActions = append(m.pendingActions, "release:"+code.String())
}

func (m *Machine) savePress(t time.Time)   { m.savedPressTime = t }
func (m *Machine) saveRelease(t time.Time) { m.savedReleaseTime = t }

func (m *Machine) setTapTimer(t time.Time)  { m.timer.set(t, t.Add(TapTimeout)) }
func (m *Machine) setDragTimer(t time.Time) { m.timer.set(t, t.Add(DragTimeout)) }
func (m *Machine) clearTimer()              { m.timer.cancel() }

// deadCurrent implements the dead(t) action: mark the touch the event is
// about as DEAD, move the FSM itself to DEAD, and clear the timer. Only
// used on MOTION (§4.1) — motion past the threshold kills the whole
// gesture as a tap candidate, not just the moving finger's bookkeeping.
func (m *Machine) deadCurrent(touchID int) {
	m.touchFor(touchID).tapState = TapDead
	m.state = Dead
	m.clearTimer()
}

// bug logs an impossible (state, event) pair and does nothing else
// (§9 "bug events are recoverable").
func (m *Machine) bug(ev Event) {
	m.log.Warn("impossible tap transition", "state", m.state, "event", ev)
}
