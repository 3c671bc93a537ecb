// Package classify provides the external palm/thumb classifiers and
// physical-distance helper the frame driver consumes (§6.2) but never
// implements itself. Pressure-based classification is explicitly out of
// scope; these use touch size (ABS_MT_TOUCH_MAJOR) and position instead.
package classify

import (
	"math"

	"github.com/tapdaemon/tapd/internal/evdev"
	"github.com/tapdaemon/tapd/internal/frame"
	"github.com/tapdaemon/tapd/internal/tapstate"
)

// Thresholds configures the size/position heuristics. Zero values
// disable the corresponding check.
type Thresholds struct {
	// PalmMajor is the ABS_MT_TOUCH_MAJOR value above which a touch is
	// treated as a palm.
	PalmMajor int32
	// ThumbMajor is the (typically lower) major-axis value above which a
	// touch near the bottom edge is treated as a thumb.
	ThumbMajor int32
	// BottomEdgeY is the device Y coordinate above which a touch is
	// considered to be resting near the bottom edge of the pad.
	BottomEdgeY int32
}

// Heuristics bundles the classifier closures built from one device's
// capabilities and thresholds.
type Heuristics struct {
	thresholds Thresholds
	resX, resY int32
}

// New builds Heuristics for a device with the given resolution (units
// per mm, from Capabilities.ResolutionXPerMM/Y).
func New(caps evdev.Capabilities, thresholds Thresholds) *Heuristics {
	return &Heuristics{thresholds: thresholds, resX: caps.ResolutionXPerMM, resY: caps.ResolutionYPerMM}
}

// Classifiers builds the frame.Classifiers this device's raw samples
// drive; sampleByIndex looks up the evdev.TouchSample backing a
// frame.TouchFrame so the heuristics can see TouchMajor, which
// frame.TouchFrame itself does not carry.
func (h *Heuristics) Classifiers(sampleByIndex func(index int) (evdev.TouchSample, bool)) frame.Classifiers {
	return frame.Classifiers{
		PalmDetected: func(t frame.TouchFrame) bool {
			s, ok := sampleByIndex(t.Index)
			return ok && h.thresholds.PalmMajor > 0 && s.TouchMajor >= h.thresholds.PalmMajor
		},
		IgnoredForTap: func(t frame.TouchFrame) bool {
			s, _ := sampleByIndex(t.Index)
			return h.isThumbLike(t, s)
		},
		PalmTapIsPalm: func(t frame.TouchFrame) bool {
			s, ok := sampleByIndex(t.Index)
			return ok && h.thresholds.PalmMajor > 0 && s.TouchMajor >= h.thresholds.PalmMajor
		},
		ThumbInProgress: func(t frame.TouchFrame) bool {
			s, _ := sampleByIndex(t.Index)
			return h.isThumbLike(t, s)
		},
		MillimetersFrom: func(current, reference tapstate.Point) float64 {
			return h.millimeters(current, reference)
		},
	}
}

// isThumbLike requires both signals together: a touch near the bottom
// edge of the pad AND reporting a major-axis size at or above
// ThumbMajor. Position alone is too common near the edge (typing,
// resting) to disqualify on its own; size alone has no positional
// meaning without it.
func (h *Heuristics) isThumbLike(t frame.TouchFrame, s evdev.TouchSample) bool {
	if h.thresholds.ThumbMajor <= 0 || h.thresholds.BottomEdgeY <= 0 {
		return false
	}
	if int32(t.Position.Y) < h.thresholds.BottomEdgeY {
		return false
	}
	return s.TouchMajor >= h.thresholds.ThumbMajor
}

// millimeters converts a device-unit displacement to millimeters using
// the per-axis resolution queried at device-open time. An axis whose
// device never reported a resolution stays in raw device units, so the
// motion threshold is then compared against unscaled units.
func (h *Heuristics) millimeters(current, reference tapstate.Point) float64 {
	dx := current.X - reference.X
	dy := current.Y - reference.Y
	if h.resX > 0 {
		dx /= float64(h.resX)
	}
	if h.resY > 0 {
		dy /= float64(h.resY)
	}
	return math.Hypot(dx, dy)
}
