// Package tapstate implements the tap-to-click finite-state machine: it
// turns a stream of per-touch admit/move/release/palm/thumb events into
// synthetic pointer-button press/release events, under the timing rules
// of single/double/triple tap, tap-and-drag, and tap-and-drag-with-lock.
//
// The package has no device I/O of its own. Callers (typically a frame
// driver, see internal/frame) feed it events; it drives a Timer and an
// EventSink.
package tapstate

import "time"

// State is one of the 15 states of the tap FSM.
type State int

const (
	IDLE State = iota
	TOUCH
	HOLD
	TAPPED
	TOUCH2
	TOUCH2Hold
	TOUCH2Release
	TOUCH3
	TOUCH3Hold
	Dragging
	DraggingWait
	DraggingOrDoubletap
	DraggingOrTap
	Dragging2
	Dead
)

func (s State) String() string {
	switch s {
	case IDLE:
		return "IDLE"
	case TOUCH:
		return "TOUCH"
	case HOLD:
		return "HOLD"
	case TAPPED:
		return "TAPPED"
	case TOUCH2:
		return "TOUCH_2"
	case TOUCH2Hold:
		return "TOUCH_2_HOLD"
	case TOUCH2Release:
		return "TOUCH_2_RELEASE"
	case TOUCH3:
		return "TOUCH_3"
	case TOUCH3Hold:
		return "TOUCH_3_HOLD"
	case Dragging:
		return "DRAGGING"
	case DraggingWait:
		return "DRAGGING_WAIT"
	case DraggingOrDoubletap:
		return "DRAGGING_OR_DOUBLETAP"
	case DraggingOrTap:
		return "DRAGGING_OR_TAP"
	case Dragging2:
		return "DRAGGING_2"
	case Dead:
		return "DEAD"
	default:
		return "UNKNOWN_STATE"
	}
}

// Event is one of the 8 event kinds the FSM consumes.
type Event int

const (
	EventTouch Event = iota
	EventMotion
	EventRelease
	EventTimeout
	EventButton
	EventThumb
	EventPalm
	EventPalmUp
)

func (e Event) String() string {
	switch e {
	case EventTouch:
		return "TOUCH"
	case EventMotion:
		return "MOTION"
	case EventRelease:
		return "RELEASE"
	case EventTimeout:
		return "TIMEOUT"
	case EventButton:
		return "BUTTON"
	case EventThumb:
		return "THUMB"
	case EventPalm:
		return "PALM"
	case EventPalmUp:
		return "PALM_UP"
	default:
		return "UNKNOWN_EVENT"
	}
}

// TapState is the per-touch admission state (§3.2).
type TapState int

const (
	TapIdle TapState = iota
	TapTouch
	TapDead
)

func (t TapState) String() string {
	switch t {
	case TapIdle:
		return "IDLE"
	case TapTouch:
		return "TOUCH"
	case TapDead:
		return "DEAD"
	default:
		return "UNKNOWN_TAP_STATE"
	}
}

// Timing constants, normative per §4.1.
const (
	TapTimeout       = 180 * time.Millisecond
	DragTimeout      = 300 * time.Millisecond
	MotionThresholdMM = 1.3
)

// ButtonCode identifies a synthetic pointer button, independent of map.
type ButtonCode int

const (
	ButtonLeft ButtonCode = iota
	ButtonRight
	ButtonMiddle
)

func (b ButtonCode) String() string {
	switch b {
	case ButtonLeft:
		return "LEFT"
	case ButtonRight:
		return "RIGHT"
	case ButtonMiddle:
		return "MIDDLE"
	default:
		return "UNKNOWN_BUTTON"
	}
}

// ButtonMap assigns n-finger tap slots (1..3) to button codes.
type ButtonMap [3]ButtonCode

// MapLRM is {1:L, 2:R, 3:M}.
var MapLRM = ButtonMap{ButtonLeft, ButtonRight, ButtonMiddle}

// MapLMR is {1:L, 2:M, 3:R}.
var MapLMR = ButtonMap{ButtonLeft, ButtonMiddle, ButtonRight}

// Button resolves the n-finger slot (1-indexed) through the map.
func (m ButtonMap) Button(n int) ButtonCode {
	return m[n-1]
}
