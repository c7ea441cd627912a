package session

import "sync"

// Store persists session state.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the last saved state, or ErrNotFound.
	Load() (State, error)

	// Save records s, replacing any previous state.
	Save(s State) error
}

// MemoryStore is an in-memory Store. Data is lost when the process exits.
type MemoryStore struct {
	mu    sync.RWMutex
	state State
	saved bool
	saves int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load() (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.saved {
		return State{}, ErrNotFound
	}
	return m.state, nil
}

// Save implements Store.
func (m *MemoryStore) Save(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = s
	m.saved = true
	m.saves++
	return nil
}

// Saves returns how many times Save has succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
