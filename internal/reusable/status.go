package reusable

import (
	"sync"
	"time"
)

// Status is the state of the promote action for one block.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

type ActionState struct {
	Status    Status    `json:"status"`
	NewID     string    `json:"newId,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Tracker records the action state per (document, key) and admits at most one
// pending promotion for each.
type Tracker struct {
	mu     sync.Mutex
	states map[string]ActionState
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]ActionState), now: time.Now}
}

func trackerKey(documentID, key string) string {
	return documentID + "\x00" + key
}

// Begin moves the action to pending. It returns false if a promotion of the
// same block is already pending.
func (t *Tracker) Begin(documentID, key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := trackerKey(documentID, key)
	if t.states[k].Status == StatusPending {
		return false
	}
	t.states[k] = ActionState{Status: StatusPending, UpdatedAt: t.now()}
	return true
}

func (t *Tracker) Finish(documentID, key, newID string, err error) ActionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := ActionState{Status: StatusSucceeded, NewID: newID, UpdatedAt: t.now()}
	if err != nil {
		state.Status = StatusFailed
		state.Error = err.Error()
	}
	t.states[trackerKey(documentID, key)] = state
	return state
}

func (t *Tracker) State(documentID, key string) ActionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	state, ok := t.states[trackerKey(documentID, key)]
	if !ok {
		return ActionState{Status: StatusIdle}
	}
	return state
}

// Forget drops settled states older than maxAge and returns how many were removed.
func (t *Tracker) Forget(maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-maxAge)
	removed := 0
	for k, state := range t.states {
		if state.Status != StatusPending && state.UpdatedAt.Before(cutoff) {
			delete(t.states, k)
			removed++
		}
	}
	return removed
}
