// Package frame implements the per-frame driver (spec §4.2): once per
// input frame, it inspects every touch's raw state, palm/thumb
// classifications and motion, and synthesizes the fixed, ordered sequence
// of tapstate events that drive the tap-to-click machine.
package frame

import (
	"log/slog"
	"time"

	"github.com/tapdaemon/tapd/internal/tapstate"
)

// RawState is a touch's raw per-frame state, as reported by the device
// layer (§6.2's touch iterator).
type RawState int

const (
	StateNone RawState = iota
	StateBegin
	StateUpdate
	StateEnd
	StateHovering
)

// TouchFrame is one touch's snapshot for the current frame.
type TouchFrame struct {
	Index    int
	Raw      RawState
	WasDown  bool
	Dirty    bool
	Position tapstate.Point

	// IsPalmLatched / IsThumbLatched mirror the machine's own latches so
	// the driver can skip touches without round-tripping through it.
	IsPalmLatched  bool
	IsThumbLatched bool
}

// Classifiers bundles the external collaborators the frame driver
// consumes (§6.2) but never implements itself — palm/thumb detection and
// physical-distance computation live outside this package.
type Classifiers struct {
	// PalmDetected reports the external palm detector's verdict for a
	// touch that is not yet latched as palm.
	PalmDetected func(touch TouchFrame) bool
	// IgnoredForTap is the thumb pre-classifier consulted at BEGIN.
	IgnoredForTap func(touch TouchFrame) bool
	// PalmTapIsPalm is the palm-tap pre-classifier consulted at BEGIN.
	PalmTapIsPalm func(touch TouchFrame) bool
	// ThumbInProgress is the thumb-in-progress classifier consulted for
	// touches admitted earlier in the gesture.
	ThumbInProgress func(touch TouchFrame) bool
	// MillimetersFrom returns the physical distance in mm between a
	// touch's current position and a reference position.
	MillimetersFrom func(current, reference tapstate.Point) float64
}

// DeviceQuirks captures the two motion-threshold exceptions of §4.2a.
type DeviceQuirks struct {
	// SynapticsSerialOverflow is true when the device is a
	// Synaptics-style serial touchpad reporting more raw fingers than
	// slots, and more than two fingers are currently down.
	SynapticsSerialOverflow bool
	// SemiMTFingerCountChanged is true on any frame where a semi-MT
	// device's raw finger count changed.
	SemiMTFingerCountChanged bool
}

// Frame is everything the driver needs for one call to HandleState:
// the full set of touches (stable order), click-pad button state, and
// the quirk flags that gate the motion threshold.
type Frame struct {
	Touches           []TouchFrame
	IsClickpad        bool
	ButtonPressQueued bool
	Quirks            DeviceQuirks
}

// Driver wraps a tapstate.Machine with the frame-level algorithm (§4.2).
type Driver struct {
	machine *tapstate.Machine
	cls     Classifiers
	log     *slog.Logger
}

// NewDriver builds a frame driver over an existing machine.
func NewDriver(machine *tapstate.Machine, cls Classifiers, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{machine: machine, cls: cls, log: log}
}

// Machine exposes the underlying FSM for lifecycle/config calls.
func (d *Driver) Machine() *tapstate.Machine { return d.machine }

// HandleState runs the §4.2 algorithm once for one frame and returns
// filter_motion: true iff pointer motion should be suppressed this frame
// because a tap decision is pending.
func (d *Driver) HandleState(frame Frame, now time.Time) bool {
	if !d.machine.Active() {
		return false
	}

	if frame.IsClickpad && frame.ButtonPressQueued {
		d.machine.Step(tapstate.EventButton, -1, now)
	}

	for _, touch := range frame.Touches {
		d.handleTouch(frame, touch, now)
	}

	return filterMotion(d.machine.State())
}

// PostProcessState is §6.1's post_process_state(): applied once per frame
// after HandleState to perform the deferred button-map swap if the
// machine has since returned to IDLE.
func (d *Driver) PostProcessState() {
	d.machine.ApplyPendingMap()
}

func (d *Driver) handleTouch(frame Frame, touch TouchFrame, now time.Time) {
	if !touch.Dirty || touch.Raw == StateNone {
		return
	}

	if frame.IsClickpad && frame.ButtonPressQueued {
		d.machine.KillTouch(touch.Index)
	}

	if touch.IsThumbLatched {
		return
	}

	if touch.IsPalmLatched {
		if touch.Raw == StateEnd {
			d.machine.Step(tapstate.EventPalmUp, touch.Index, now)
			d.machine.ForgetTouch(touch.Index)
		}
		return
	}

	if touch.Raw == StateHovering {
		return
	}

	if d.cls.PalmDetected != nil && d.cls.PalmDetected(touch) {
		d.machine.MarkPalm(touch.Index, touch.Raw == StateBegin, now)
		return
	}

	switch touch.Raw {
	case StateBegin:
		d.handleBegin(touch, now)
	case StateEnd:
		d.machine.ReleaseTouch(touch.Index, touch.WasDown, now)
		d.machine.ForgetTouch(touch.Index)
	default:
		if d.machine.State() != tapstate.IDLE && d.cls.ThumbInProgress != nil && d.cls.ThumbInProgress(touch) {
			d.machine.Step(tapstate.EventThumb, touch.Index, now)
			return
		}
		if d.machine.State() != tapstate.IDLE && d.exceedsMotionThreshold(frame, touch) {
			d.machine.KillAllTapCandidates()
			d.machine.Step(tapstate.EventMotion, touch.Index, now)
		}
	}
}

func (d *Driver) handleBegin(touch TouchFrame, now time.Time) {
	if d.cls.IgnoredForTap != nil && d.cls.IgnoredForTap(touch) {
		d.machine.MarkThumbAtBegin(touch.Index)
		return
	}
	d.machine.AdmitTouch(touch.Index, touch.Position, now)
	if d.cls.PalmTapIsPalm != nil && d.cls.PalmTapIsPalm(touch) {
		// The initial touch looked palm-like; kill the tap without a
		// dedicated state by feeding it through the ordinary motion path.
		d.machine.Step(tapstate.EventMotion, touch.Index, now)
	}
}

// exceedsMotionThreshold applies §4.2a: two device quirks suppress the
// test entirely regardless of measured distance.
func (d *Driver) exceedsMotionThreshold(frame Frame, touch TouchFrame) bool {
	if frame.Quirks.SynapticsSerialOverflow {
		return false
	}
	if frame.Quirks.SemiMTFingerCountChanged {
		return false
	}
	if d.cls.MillimetersFrom == nil {
		return false
	}
	initial := d.machine.InitialPosition(touch.Index)
	return d.cls.MillimetersFrom(touch.Position, initial) > tapstate.MotionThresholdMM
}

// filterMotion implements §4.2 step 4.
func filterMotion(s tapstate.State) bool {
	switch s {
	case tapstate.TOUCH, tapstate.TAPPED, tapstate.DraggingOrDoubletap,
		tapstate.DraggingOrTap, tapstate.TOUCH2, tapstate.TOUCH3:
		return true
	default:
		return false
	}
}
