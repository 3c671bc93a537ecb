package tapstate

// Point is a touch position in the device's native ABS units. Converting
// a displacement between two Points into millimeters is device-specific
// (it depends on the axis resolution reported by the hardware), so that
// conversion is supplied externally as Classifiers.MillimetersFrom
// (§6.2) rather than implemented in this package, which never talks to
// hardware.
type Point struct {
	X, Y float64
}

// touch is the per-touch tap bookkeeping (§3.2). Many bugs in
// reimplementations of this machine come from conflating this with the
// global FSM state: a touch can be disqualified (DEAD) without the FSM
// itself leaving a multi-finger state, because other touches may still be
// live tap candidates.
type touch struct {
	tapState TapState
	isThumb  bool // latched: once true, stays true for this touch's lifetime
	isPalm   bool // latched: once true, stays true for this touch's lifetime
	initial  Point
}
