// Package refresh drives score recomputation. A Tracker holds the
// per-company state machine, an Orchestrator sweeps dirty companies
// through the combiner and cascades the results into sector benchmarks
// and portfolio scores.
package refresh

import (
	"sync"

	"github.com/verdant/esgengine/internal/contracts"
)

// Tracker is the per-company recomputation state machine:
// Clean -> Dirty -> Recomputing -> Clean. A company that recombined to
// InsufficientData parks in NoScore until a new document marks it dirty
// again. All transitions are compare-and-set under one mutex; marking a
// company that is already dirty is a no-op.
type Tracker struct {
	mu     sync.Mutex
	states map[string]contracts.RefreshState
}

// NewTracker creates a new Tracker
func NewTracker() *Tracker {
	return &Tracker{states: make(map[string]contracts.RefreshState)}
}

// MarkCompanyDirty flags a company for recomputation. Idempotent; a mark
// during an in-flight recompute re-dirties the company so the next sweep
// picks up the newer document.
func (t *Tracker) MarkCompanyDirty(companyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[companyID] = contracts.RefreshDirty
}

// State returns a company's current state; unseen companies are Clean
func (t *Tracker) State(companyID string) contracts.RefreshState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.states[companyID]; ok {
		return s
	}
	return contracts.RefreshClean
}

// DirtyCompanies returns a snapshot of the companies currently dirty
func (t *Tracker) DirtyCompanies() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var dirty []string
	for id, s := range t.states {
		if s == contracts.RefreshDirty {
			dirty = append(dirty, id)
		}
	}
	return dirty
}

// BeginRecompute transitions Dirty -> Recomputing. Returns false when the
// company is no longer dirty (already taken by another worker, or cleaned
// since the snapshot).
func (t *Tracker) BeginRecompute(companyID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[companyID] != contracts.RefreshDirty {
		return false
	}
	t.states[companyID] = contracts.RefreshRecomputing
	return true
}

// Complete transitions Recomputing -> final (Clean or NoScore). If the
// company was re-marked dirty mid-recompute the dirty state wins and the
// company stays eligible for the next sweep.
func (t *Tracker) Complete(companyID string, final contracts.RefreshState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[companyID] == contracts.RefreshRecomputing {
		t.states[companyID] = final
	}
}

// Fail returns a company to Dirty after a recompute error so the next
// sweep retries it
func (t *Tracker) Fail(companyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.states[companyID] == contracts.RefreshRecomputing {
		t.states[companyID] = contracts.RefreshDirty
	}
}
