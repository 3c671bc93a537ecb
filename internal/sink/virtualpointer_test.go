package sink

import (
	"testing"
	"time"

	"github.com/tapdaemon/tapd/internal/tapstate"
)

type recordingSink struct {
	calls []tapstate.ButtonCode
}

func (r *recordingSink) NotifyButton(t time.Time, code tapstate.ButtonCode, state tapstate.ButtonState) {
	r.calls = append(r.calls, code)
}

func TestFanOutBroadcastsToBoth(t *testing.T) {
	primary := &recordingSink{}
	secondary := &recordingSink{}
	f := NewFanOut(primary, secondary)

	f.NotifyButton(time.Now(), tapstate.ButtonLeft, tapstate.ButtonPressed)
	if len(primary.calls) != 1 || len(secondary.calls) != 1 {
		t.Fatalf("expected both sinks to receive the call, got primary=%v secondary=%v", primary.calls, secondary.calls)
	}
}

func TestFanOutToleratesNilSecondary(t *testing.T) {
	primary := &recordingSink{}
	f := NewFanOut(primary, nil)

	f.NotifyButton(time.Now(), tapstate.ButtonRight, tapstate.ButtonReleased)
	if len(primary.calls) != 1 {
		t.Fatalf("expected the primary to receive the call")
	}
}

func TestFanOutSetSecondary(t *testing.T) {
	primary := &recordingSink{}
	f := NewFanOut(primary, nil)

	f.NotifyButton(time.Now(), tapstate.ButtonLeft, tapstate.ButtonPressed)
	second := &recordingSink{}
	f.SetSecondary(second)
	f.NotifyButton(time.Now(), tapstate.ButtonLeft, tapstate.ButtonReleased)

	if len(primary.calls) != 2 {
		t.Fatalf("primary should see every call regardless of secondary attach time")
	}
	if len(second.calls) != 1 {
		t.Fatalf("secondary should only see calls after being attached")
	}
}

func TestEvdevCodeMapping(t *testing.T) {
	cases := map[tapstate.ButtonCode]uint32{
		tapstate.ButtonLeft:   btnLeft,
		tapstate.ButtonRight:  btnRight,
		tapstate.ButtonMiddle: btnMiddle,
	}
	for code, want := range cases {
		if got := evdevCode(code); got != want {
			t.Errorf("evdevCode(%v) = %#x, want %#x", code, got, want)
		}
	}
}
