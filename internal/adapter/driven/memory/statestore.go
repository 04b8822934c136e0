// Package memory holds process-local implementations of driven ports.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ericfisherdev/igmedia/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.StateStore = (*StateStore)(nil)

// StateStore keeps pending OAuth state values in memory. Bindings do not
// survive a restart, which only forces the operator to start the flow again.
type StateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
	now    func() time.Time
}

// NewStateStore returns an empty StateStore using the wall clock.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]time.Time), now: time.Now}
}

// Put records state until expiresAt. Expired bindings are swept on write.
func (s *StateStore) Put(_ context.Context, state string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.states {
		if !now.Before(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = expiresAt
	return nil
}

// Exists reports whether state is bound and unexpired.
func (s *StateStore) Exists(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.states[state]
	return ok && s.now().Before(exp), nil
}

// Delete removes the binding for state.
func (s *StateStore) Delete(_ context.Context, state string) error {
	s.mu.Lock()
	delete(s.states, state)
	s.mu.Unlock()
	return nil
}

// Pending reports whether any unexpired binding exists.
func (s *StateStore) Pending(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, exp := range s.states {
		if now.Before(exp) {
			return true, nil
		}
	}
	return false, nil
}
