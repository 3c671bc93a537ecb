package diagnostics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/tapdaemon/tapd/internal/tapstate"
)

// A Client with no live connection must drop transitions silently rather
// than blocking or panicking — the FSM calling OnTransition must never
// observe a diagnostics outage.
func TestOnTransitionWithoutConnectionIsNoop(t *testing.T) {
	c := NewClient("ws://example.invalid/diagnostics", time.Second, 5*time.Second, nil)
	c.OnTransition(tapstate.Transition{
		Time: time.Now(), State: tapstate.IDLE, Event: tapstate.EventTouch,
		Next: tapstate.TOUCH, TouchID: 1, Actions: nil,
	})
}

func TestTransitionFrameMarshaling(t *testing.T) {
	f := transitionFrame{
		T:         "transition",
		Time:      1234,
		State:     "IDLE",
		Event:     "TOUCH",
		NextState: "TOUCH",
		TouchID:   3,
		Actions:   []string{"press:LEFT"},
	}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["state"] != "IDLE" || got["next_state"] != "TOUCH" || got["touch_id"] != float64(3) {
		t.Fatalf("got %v, missing expected fields", got)
	}
}

func TestTransitionFrameOmitsEmptyActions(t *testing.T) {
	f := transitionFrame{T: "transition", State: "IDLE", Event: "RELEASE", NextState: "IDLE"}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, present := got["actions"]; present {
		t.Fatalf("actions must be omitted when empty, got %v", got)
	}
}
