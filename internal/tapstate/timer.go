package tapstate

import "time"

// timerHandle is the single one-shot timer multiplexed between the tap
// timeout and the drag timeout (§4.3, §9 "single timer, two semantics" —
// the two are told apart by which state armed it, DraggingWait being the
// only state that uses the drag deadline, not by a second handle).
//
// It does not own a callback into the machine: the owning event loop
// selects on C() and calls Machine.Step(EventTimeout, ...) itself, so the
// timer never holds a pointer back into FSM state (§9 "no cyclic
// ownership").
type timerHandle struct {
	t     *time.Timer
	armed bool
}

func newTimerHandle() *timerHandle {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return &timerHandle{t: t}
}

// C is the channel that fires once when the timer's deadline passes.
func (h *timerHandle) C() <-chan time.Time {
	return h.t.C
}

// set arms the timer at an absolute deadline, overwriting any previous
// deadline (§4.3: "Arming overwrites any previous deadline").
func (h *timerHandle) set(now, deadline time.Time) {
	h.stop()
	d := deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	h.t.Reset(d)
	h.armed = true
}

// cancel is idempotent (§4.3).
func (h *timerHandle) cancel() {
	h.stop()
	h.armed = false
}

func (h *timerHandle) stop() {
	if !h.t.Stop() {
		select {
		case <-h.t.C:
		default:
		}
	}
}
