package roundsync

import (
	"sync"
	"time"
)

// Registry owns the SyncState of every live game. Lock order is registry
// first, then a state's own mutex.
type Registry struct {
	mu     sync.Mutex
	states map[string]*SyncState
	now    func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{states: map[string]*SyncState{}, now: now}
}

// Init creates state at round 1. An existing state is returned untouched
// with created=false, so duplicate initialization cannot clobber progress.
func (r *Registry) Init(gameID string, participants []string, totalRounds int) (st *SyncState, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := r.states[gameID]; existing != nil {
		return existing, false
	}
	st = newSyncState(gameID, participants, totalRounds, r.now())
	r.states[gameID] = st
	return st, true
}

// Get returns the state and refreshes its idle timer.
func (r *Registry) Get(gameID string) (*SyncState, bool) {
	r.mu.Lock()
	st := r.states[gameID]
	r.mu.Unlock()
	if st == nil {
		return nil, false
	}
	now := r.now()
	st.mu.Lock()
	st.lastActivity = now
	st.mu.Unlock()
	return st, true
}

// Peek returns the state without counting as activity.
func (r *Registry) Peek(gameID string) (*SyncState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.states[gameID]
	return st, st != nil
}

func (r *Registry) Delete(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, gameID)
}

// EvictIdleOlderThan drops states whose last activity is before cutoff and
// returns their game ids.
func (r *Registry) EvictIdleOlderThan(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, st := range r.states {
		st.mu.Lock()
		idle := st.lastActivity.Before(cutoff)
		st.mu.Unlock()
		if idle {
			delete(r.states, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
