// Package sink implements tapstate.EventSink backends: a real Wayland
// virtual-pointer sink for injecting synthetic button events, and a
// fan-out combinator for attaching a secondary (e.g. diagnostics) sink
// without the FSM ever knowing more than one exists.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bnema/libwldevices-go/virtual_pointer"

	"github.com/tapdaemon/tapd/internal/tapstate"
)

// evdev button codes that tapstate.ButtonCode values are translated to
// (§6.3).
const (
	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
)

// VirtualPointer emits synthetic pointer buttons through
// zwlr_virtual_pointer_v1, the same protocol the teacher's native bridge
// never needed (it streamed ink strokes over a websocket instead of
// injecting pointer input), adopted here because tap-to-click's whole
// job is emitting real button presses into the compositor.
type VirtualPointer struct {
	manager *virtual_pointer.VirtualPointerManager
	pointer *virtual_pointer.VirtualPointer
	log     *slog.Logger
}

// NewVirtualPointer connects to the compositor and creates one virtual
// pointer device. The returned sink must be closed when the daemon exits.
func NewVirtualPointer(ctx context.Context, log *slog.Logger) (*VirtualPointer, error) {
	if log == nil {
		log = slog.Default()
	}
	manager, err := virtual_pointer.NewVirtualPointerManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect virtual pointer manager: %w", err)
	}
	pointer, err := manager.CreatePointer()
	if err != nil {
		manager.Close()
		return nil, fmt.Errorf("create virtual pointer: %w", err)
	}
	return &VirtualPointer{manager: manager, pointer: pointer, log: log}, nil
}

// Close releases the pointer and the manager connection.
func (v *VirtualPointer) Close() error {
	if v.pointer != nil {
		v.pointer.Close()
	}
	if v.manager != nil {
		v.manager.Close()
	}
	return nil
}

// NotifyButton implements tapstate.EventSink: it translates the FSM's
// timestamp and button code into a protocol-level button event. The
// timestamp itself is advisory (the compositor stamps its own clock); it
// is only used for logging here.
func (v *VirtualPointer) NotifyButton(t time.Time, code tapstate.ButtonCode, state tapstate.ButtonState) {
	btn := evdevCode(code)
	pressed := state == tapstate.ButtonPressed
	if err := v.pointer.Button(btn, pressed); err != nil {
		v.log.Warn("virtual pointer button failed", "code", code, "pressed", pressed, "err", err)
		return
	}
	v.log.Debug("virtual pointer button", "code", code, "pressed", pressed, "ts", t)
}

// MoveRelative forwards ordinary pointer motion. The frame driver's
// filter_motion result (§4.2 step 4) gates whether the caller should
// invoke this at all — tapd is not just a tap decider, it is the sole
// consumer of the grabbed device, so it must also relay the motion a
// non-grabbing libinput would otherwise have handled.
func (v *VirtualPointer) MoveRelative(dx, dy float64) {
	if err := v.pointer.MoveRelative(dx, dy); err != nil {
		v.log.Debug("virtual pointer motion failed", "dx", dx, "dy", dy, "err", err)
	}
}

func evdevCode(code tapstate.ButtonCode) uint32 {
	switch code {
	case tapstate.ButtonRight:
		return btnRight
	case tapstate.ButtonMiddle:
		return btnMiddle
	default:
		return btnLeft
	}
}

// FanOut broadcasts every NotifyButton call to a primary sink and, if
// present, a secondary one, so the FSM is never
// aware of more than one EventSink.
type FanOut struct {
	primary   tapstate.EventSink
	secondary tapstate.EventSink
}

// NewFanOut builds a fan-out sink. secondary may be nil.
func NewFanOut(primary, secondary tapstate.EventSink) *FanOut {
	return &FanOut{primary: primary, secondary: secondary}
}

func (f *FanOut) NotifyButton(t time.Time, code tapstate.ButtonCode, state tapstate.ButtonState) {
	f.primary.NotifyButton(t, code, state)
	if f.secondary != nil {
		f.secondary.NotifyButton(t, code, state)
	}
}

// SetSecondary swaps the secondary sink at runtime (e.g. when a
// diagnostics client connects or disconnects).
func (f *FanOut) SetSecondary(s tapstate.EventSink) { f.secondary = s }
