package globalstate

import (
	"sync"

	"echoprobe/internal/shared/types"
)

// StatusManager tracks the state of the most recent probe session for
// callers that cannot hold on to a Summary, such as the mobile bindings.
type StatusManager struct {
	mu     sync.RWMutex
	state  types.SessionState
	detail string
}

// GlobalStatus is the process-wide status.
var GlobalStatus = &StatusManager{state: types.StateIdle}

// Set replaces the state and its free-form detail (an error or summary line).
func (sm *StatusManager) Set(state types.SessionState, detail string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.state = state
	sm.detail = detail
}

// TryStart moves to StateRunning unless a session is already running.
func (sm *StatusManager) TryStart() bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.state == types.StateRunning {
		return false
	}
	sm.state = types.StateRunning
	sm.detail = ""
	return true
}

func (sm *StatusManager) Get() (types.SessionState, string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state, sm.detail
}
