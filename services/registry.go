package services

import "sync"

// SessionRegistry is the process-wide map from session id to live GameState.
// It is populated when a game starts and purged the moment the game ends.
// The outer lock only guards the map itself; per-session serialization is
// the GameState's own mutex, so two sessions never contend.
type SessionRegistry struct {
	mu     sync.RWMutex
	states map[uint]*GameState
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		states: make(map[uint]*GameState),
	}
}

func (r *SessionRegistry) Put(sessionID uint, state *GameState) {
	r.mu.Lock()
	r.states[sessionID] = state
	r.mu.Unlock()
}

func (r *SessionRegistry) Get(sessionID uint) (*GameState, bool) {
	r.mu.RLock()
	state, ok := r.states[sessionID]
	r.mu.RUnlock()
	return state, ok
}

func (r *SessionRegistry) Remove(sessionID uint) {
	r.mu.Lock()
	delete(r.states, sessionID)
	r.mu.Unlock()
}

func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// ForEachActive calls fn for every registered state. The map lock is
// released before fn runs, so a slow session cannot stall lookups or
// other sessions' progress during the scheduler sweep.
func (r *SessionRegistry) ForEachActive(fn func(state *GameState)) {
	r.mu.RLock()
	states := make([]*GameState, 0, len(r.states))
	for _, state := range r.states {
		states = append(states, state)
	}
	r.mu.RUnlock()

	for _, state := range states {
		fn(state)
	}
}
