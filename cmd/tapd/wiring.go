package main

import (
	"log/slog"

	"github.com/tapdaemon/tapd/internal/classify"
	"github.com/tapdaemon/tapd/internal/evdev"
	"github.com/tapdaemon/tapd/internal/frame"
	"github.com/tapdaemon/tapd/internal/sink"
	"github.com/tapdaemon/tapd/internal/tapstate"
)

// wiring holds the small amount of state that bridges internal/evdev's
// raw samples into internal/frame's Frame shape: the per-touch palm/thumb
// latches live on the FSM, the raw TouchMajor/position data lives on the
// last evdev.Sample, and frame.TouchFrame carries the latches and the
// position but not TouchMajor.
type wiring struct {
	machine     *tapstate.Machine
	heuristics  *classify.Heuristics
	vp          *sink.VirtualPointer
	caps        evdev.Capabilities
	motionScale float64
	log         *slog.Logger

	lastSample map[int]evdev.TouchSample
	lastPos    map[int]tapstate.Point
	prevActive int
}

func newWiring(m *tapstate.Machine, caps evdev.Capabilities, thresholds classify.Thresholds, vp *sink.VirtualPointer, motionScale float64, log *slog.Logger) *wiring {
	return &wiring{
		machine:     m,
		heuristics:  classify.New(caps, thresholds),
		vp:          vp,
		caps:        caps,
		motionScale: motionScale,
		log:         log,
		lastSample:  make(map[int]evdev.TouchSample),
		lastPos:     make(map[int]tapstate.Point),
	}
}

func (w *wiring) classifiers() frame.Classifiers {
	return w.heuristics.Classifiers(func(index int) (evdev.TouchSample, bool) {
		s, ok := w.lastSample[index]
		return s, ok
	})
}

// toFrame converts one evdev.Sample into a frame.Frame, filling in the
// FSM's own palm/thumb latches (internal/evdev has no knowledge of
// tapstate.Machine) and the §4.2a quirk flags. SynapticsSerialOverflow is
// set for any Synaptics-serial device with more than two fingers down;
// the raw finger count is not compared with the slot count.
func (w *wiring) toFrame(sample evdev.Sample, activeCount int) frame.Frame {
	quirks := frame.DeviceQuirks{
		SynapticsSerialOverflow: w.caps.SynapticsSerial && w.machine.FingersDown() > 2,
		SemiMTFingerCountChanged: w.caps.SemiMT && activeCount != w.prevActive,
	}
	w.prevActive = activeCount

	touches := make([]frame.TouchFrame, 0, len(sample.Touches))
	for _, s := range sample.Touches {
		w.lastSample[s.Index] = s
		touches = append(touches, frame.TouchFrame{
			Index:          s.Index,
			Raw:            frame.RawState(s.Raw),
			WasDown:        s.WasDown,
			Dirty:          s.Dirty,
			Position:       s.Position,
			IsPalmLatched:  w.machine.IsPalm(s.Index),
			IsThumbLatched: w.machine.IsThumb(s.Index),
		})
	}

	return frame.Frame{
		Touches:           touches,
		IsClickpad:        sample.IsClickpad,
		ButtonPressQueued: sample.ButtonPressQueued,
		Quirks:            quirks,
	}
}

// relayMotion forwards ordinary pointer motion for the frame's lowest-
// index live touch when the frame driver did not ask for it to be
// suppressed. tapd grabs the device exclusively, so nothing else will
// move the pointer on its behalf.
func (w *wiring) relayMotion(sample evdev.Sample, filterMotion bool) {
	for _, s := range sample.Touches {
		if s.Raw != evdev.StateUpdate && s.Raw != evdev.StateBegin {
			continue
		}
		prev, ok := w.lastPos[s.Index]
		w.lastPos[s.Index] = s.Position
		if !ok || filterMotion {
			continue
		}
		dx := (s.Position.X - prev.X) * w.motionScale
		dy := (s.Position.Y - prev.Y) * w.motionScale
		if dx == 0 && dy == 0 {
			continue
		}
		w.vp.MoveRelative(dx, dy)
		return
	}
}
