// Package memory keeps the clock state in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/worldclock/internal/state"
)

// Store is the default state.Store. It forgets everything on restart.
type Store struct {
	mu    sync.RWMutex
	saved *state.ClockState
	saves int
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Load returns the last saved state.
func (s *Store) Load(_ context.Context) (state.ClockState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.saved == nil {
		return state.ClockState{}, false, nil
	}
	return *s.saved, true, nil
}

// Save records st as the current state.
func (s *Store) Save(_ context.Context, st state.ClockState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = &st
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
