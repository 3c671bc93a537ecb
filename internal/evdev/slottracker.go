package evdev

import "github.com/tapdaemon/tapd/internal/tapstate"

// RawState mirrors frame.RawState; kept as its own type so this package
// has no dependency on internal/frame — the daemon's wiring layer is the
// only place that needs both, since only it also knows the per-touch
// palm/thumb latches that frame.TouchFrame carries and evdev does not.
type RawState int

const (
	StateNone RawState = iota
	StateBegin
	StateUpdate
	StateEnd
	StateHovering
)

// TouchSample is one slot's snapshot for the frame just closed by a
// SYN_REPORT.
type TouchSample struct {
	Index    int
	Raw      RawState
	WasDown  bool
	Dirty    bool
	Position tapstate.Point
	// TouchMajor is the raw ABS_MT_TOUCH_MAJOR value (device units), zero
	// if the device does not report it. Used by internal/classify's
	// size-based palm/thumb heuristics.
	TouchMajor int32
}

// Sample is everything one SYN_REPORT produced.
type Sample struct {
	Touches           []TouchSample
	IsClickpad        bool
	ButtonPressQueued bool
}

type slotState struct {
	trackingID int // -1 when the slot is not tracking a touch
	pos        tapstate.Point
	touchMajor int32
	raw        RawState
	dirty      bool
}

// SlotTracker parses a protocol-B multitouch event stream (ABS_MT_SLOT /
// ABS_MT_TRACKING_ID / ABS_MT_POSITION_X/Y, closed by SYN_REPORT) into
// per-frame Samples, the way the teacher's single-slot ABS_X/ABS_Y reader
// in linux_input.go does for one touch, generalized to N protocol-B
// slots.
type SlotTracker struct {
	slots       []*slotState
	currentSlot int
	isClickpad  bool
	btnPressed  bool
	hadBtn      bool
}

// NewSlotTracker allocates a tracker for a device with numSlots protocol-B
// slots (from Capabilities.NumSlots).
func NewSlotTracker(numSlots int, isClickpad bool) *SlotTracker {
	if numSlots < 1 {
		numSlots = 1
	}
	slots := make([]*slotState, numSlots)
	for i := range slots {
		slots[i] = &slotState{trackingID: -1}
	}
	return &SlotTracker{slots: slots, isClickpad: isClickpad}
}

// Feed processes one parsed input_event. It never blocks and never
// allocates beyond what Flush returns.
func (t *SlotTracker) Feed(etype, code uint16, value int32) {
	switch etype {
	case evAbs:
		t.feedAbs(code, value)
	case evKey:
		t.feedKey(code, value)
	}
}

func (t *SlotTracker) feedAbs(code uint16, value int32) {
	switch code {
	case absMTSlot:
		if int(value) >= 0 && int(value) < len(t.slots) {
			t.currentSlot = int(value)
		}
	case absMTTrackingID:
		s := t.slots[t.currentSlot]
		if value < 0 {
			if s.trackingID >= 0 {
				s.raw = StateEnd
				s.dirty = true
			}
			s.trackingID = -1
		} else {
			s.trackingID = int(value)
			s.raw = StateBegin
			s.dirty = true
		}
	case absMTPositionX:
		s := t.slots[t.currentSlot]
		s.pos.X = float64(value)
		s.dirty = true
		if s.raw == StateNone {
			s.raw = StateUpdate
		}
	case absMTPositionY:
		s := t.slots[t.currentSlot]
		s.pos.Y = float64(value)
		s.dirty = true
		if s.raw == StateNone {
			s.raw = StateUpdate
		}
	case absMTTouchMaj:
		s := t.slots[t.currentSlot]
		s.touchMajor = value
		s.dirty = true
	case absX:
		// Single-slot fallback for devices with no ABS_MT_* axes.
		if len(t.slots) == 1 {
			s := t.slots[0]
			s.pos.X = float64(value)
			s.dirty = true
			if s.raw == StateNone {
				s.raw = StateUpdate
			}
		}
	case absY:
		if len(t.slots) == 1 {
			s := t.slots[0]
			s.pos.Y = float64(value)
			s.dirty = true
			if s.raw == StateNone {
				s.raw = StateUpdate
			}
		}
	}
}

func (t *SlotTracker) feedKey(code uint16, value int32) {
	switch code {
	case btnLeft:
		if t.isClickpad && value != 0 {
			t.hadBtn = true
		}
		t.btnPressed = value != 0
	}
}

// ActiveCount returns the number of slots currently tracking a touch,
// for the semi-MT finger-count-changed quirk (§4.2a).
func (t *SlotTracker) ActiveCount() int {
	n := 0
	for _, s := range t.slots {
		if s.trackingID >= 0 {
			n++
		}
	}
	return n
}

// Flush is called on SYN_REPORT: it returns the Sample for the frame that
// just closed and resets all per-frame dirty/queued bookkeeping.
func (t *SlotTracker) Flush() Sample {
	out := Sample{IsClickpad: t.isClickpad, ButtonPressQueued: t.hadBtn}
	for i, s := range t.slots {
		if !s.dirty {
			continue
		}
		out.Touches = append(out.Touches, TouchSample{
			Index:      i,
			Raw:        s.raw,
			WasDown:    s.raw == StateEnd,
			Dirty:      true,
			Position:   s.pos,
			TouchMajor: s.touchMajor,
		})
		s.dirty = false
		if s.raw == StateEnd {
			s.raw = StateNone
		} else {
			s.raw = StateUpdate
		}
	}
	t.hadBtn = false
	return out
}
