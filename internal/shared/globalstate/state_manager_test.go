package globalstate

import (
	"testing"

	"echoprobe/internal/shared/types"
)

func TestStatusManager(t *testing.T) {
	sm := &StatusManager{state: types.StateIdle}

	if !sm.TryStart() {
		t.Fatal("Expected TryStart to succeed from idle")
	}
	if sm.TryStart() {
		t.Error("Expected a second TryStart to fail while running")
	}

	sm.Set(types.StateFailed, "connect_error")
	state, detail := sm.Get()
	if state != types.StateFailed || detail != "connect_error" {
		t.Errorf("Get() = %s, %q", state, detail)
	}

	if !sm.TryStart() {
		t.Error("Expected TryStart to succeed after a failed session")
	}
	if _, detail := sm.Get(); detail != "" {
		t.Errorf("Expected TryStart to clear the detail, got %q", detail)
	}
}
