package auth

import "testing"

func TestFsmHandleEventTransitions(t *testing.T) {
	f := &fsm{
		current: "a",
		table: []eventDesc{
			{from: "a", to: "b", events: []string{"go"}},
			{from: "b", to: "c", events: []string{"go"}},
		},
	}

	if err := f.handleEvent("go"); err != nil {
		t.Fatalf("handleEvent() returned error: %v", err)
	}
	if f.current != "b" {
		t.Fatalf("current = %q, want %q", f.current, "b")
	}

	if err := f.handleEvent("go"); err != nil {
		t.Fatalf("handleEvent() returned error: %v", err)
	}
	if f.current != "c" {
		t.Fatalf("current = %q, want %q", f.current, "c")
	}
}

func TestFsmHandleEventNoTransition(t *testing.T) {
	f := &fsm{
		current: "a",
		table: []eventDesc{
			{from: "a", to: "b", events: []string{"go"}},
		},
	}

	if err := f.handleEvent("nonexistent"); err == nil {
		t.Fatalf("handleEvent() with an undefined event should return an error")
	}
	if f.current != "a" {
		t.Fatalf("current changed to %q on a rejected event", f.current)
	}
}

func TestFsmCallbackInvoked(t *testing.T) {
	var got []interface{}
	f := &fsm{
		current: "a",
		table: []eventDesc{
			{from: "a", to: "b", events: []string{"go"}, cb: func(args []interface{}) {
				got = args
			}},
		},
	}

	if err := f.handleEvent("go", "arg1", 2); err != nil {
		t.Fatalf("handleEvent() returned error: %v", err)
	}
	if len(got) != 2 || got[0] != "arg1" || got[1] != 2 {
		t.Fatalf("callback args = %v, want [arg1 2]", got)
	}
}

func TestStatusFSMRejectsInvalidTransition(t *testing.T) {
	f := newStatusFSM()
	if err := f.handleEvent(StatusSuccessful.String()); err != nil {
		t.Fatalf("started -> successful should be a legal transition: %v", err)
	}
	if f.current != StatusSuccessful.String() {
		t.Fatalf("current = %q, want %q", f.current, StatusSuccessful.String())
	}
	// successful is terminal: the table has no outgoing row for it.
	if err := f.handleEvent(StatusFailed.String()); err == nil {
		t.Fatalf("transition out of a terminal status should be rejected")
	}
}
