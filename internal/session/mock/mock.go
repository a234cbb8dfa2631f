// Package mock provides a test double for session.Store.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/railvox/internal/session"
)

var _ session.Store = (*Store)(nil)

// Store is a mock implementation of session.Store.
type Store struct {
	mu sync.Mutex

	// Origins maps session IDs to their last origin.
	Origins map[string]string

	// LastOriginErr, if non-nil, is returned by LastOrigin.
	LastOriginErr error

	// SetLastOriginErr, if non-nil, is returned by SetLastOrigin.
	SetLastOriginErr error

	calls map[string]int
}

func (s *Store) record(method string) {
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	s.calls[method]++
}

// LastOrigin implements session.Store.
func (s *Store) LastOrigin(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("LastOrigin")
	if s.LastOriginErr != nil {
		return "", s.LastOriginErr
	}
	return s.Origins[id], nil
}

// SetLastOrigin implements session.Store.
func (s *Store) SetLastOrigin(_ context.Context, id, station string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("SetLastOrigin")
	if s.SetLastOriginErr != nil {
		return s.SetLastOriginErr
	}
	if s.Origins == nil {
		s.Origins = make(map[string]string)
	}
	s.Origins[id] = station
	return nil
}

// CallCount returns how often method was called.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

// SetErrors replaces both error fields under the lock.
func (s *Store) SetErrors(read, write error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastOriginErr, s.SetLastOriginErr = read, write
}
