package permission

import (
	"context"
	"maps"
	"sync"
)

// StatusTable is an in-memory Checker that remembers the latest outcome
// delivered for each permission. Unknown permissions are not granted.
// Nothing is persisted.
type StatusTable struct {
	mu     sync.RWMutex
	status map[string]Outcome
}

// NewStatusTable returns a table seeded with initial outcomes.
func NewStatusTable(initial map[string]Outcome) *StatusTable {
	t := &StatusTable{status: make(map[string]Outcome, len(initial))}
	maps.Copy(t.status, initial)
	return t
}

// IsGranted implements Checker.
func (t *StatusTable) IsGranted(_ context.Context, permission string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status[permission] == Granted, nil
}

// Lookup returns the recorded outcome for permission.
func (t *StatusTable) Lookup(permission string) (Outcome, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.status[permission]
	return o, ok
}

// Set records outcome for permission.
func (t *StatusTable) Set(permission string, outcome Outcome) {
	t.mu.Lock()
	t.status[permission] = outcome
	t.mu.Unlock()
}

// Snapshot returns a copy of every recorded outcome.
func (t *StatusTable) Snapshot() map[string]Outcome {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.status)
}

// Apply records every outcome carried by resp. It is meant to be
// subscribed to a session bus with Session.Track.
func (t *StatusTable) Apply(resp Response) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, p := range resp.Permissions {
		if i < len(resp.Outcomes) {
			t.status[p] = resp.Outcomes[i]
		}
	}
}
