package session

import (
	"context"
	"sync"
	"time"
)

var (
	_ Store     = (*MemStore)(nil)
	_ Defaulter = (*MemStore)(nil)
)

type slot struct {
	mu      sync.Mutex
	origin  string
	touched time.Time
	evicted bool
}

// MemStore is an in-process [Store]. The slot table is guarded by one lock
// and each session's slot by its own, so updates to different sessions do
// not serialise on each other.
type MemStore struct {
	defaultOrigin string
	now           func() time.Time

	mu    sync.RWMutex
	slots map[string]*slot
}

// MemStoreOption configures a [MemStore].
type MemStoreOption func(*MemStore)

// WithClock overrides the clock used to stamp slots.
func WithClock(now func() time.Time) MemStoreOption {
	return func(s *MemStore) { s.now = now }
}

// NewMemStore returns an empty [MemStore]. Sessions without a recorded
// origin report defaultOrigin.
func NewMemStore(defaultOrigin string, opts ...MemStoreOption) *MemStore {
	s := &MemStore{
		defaultOrigin: defaultOrigin,
		now:           time.Now,
		slots:         make(map[string]*slot),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *MemStore) slot(id string, create bool) *slot {
	s.mu.RLock()
	sl := s.slots[id]
	s.mu.RUnlock()
	if sl != nil || !create {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl = s.slots[id]; sl == nil {
		sl = &slot{}
		s.slots[id] = sl
	}
	return sl
}

// DefaultOrigin implements [Defaulter].
func (s *MemStore) DefaultOrigin() string { return s.defaultOrigin }

// LastOrigin implements [Store].
func (s *MemStore) LastOrigin(_ context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrEmptyID
	}
	sl := s.slot(id, false)
	if sl == nil {
		return s.defaultOrigin, nil
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.origin == "" {
		return s.defaultOrigin, nil
	}
	return sl.origin, nil
}

// SetLastOrigin implements [Store].
func (s *MemStore) SetLastOrigin(_ context.Context, id, station string) error {
	if id == "" {
		return ErrEmptyID
	}
	for {
		sl := s.slot(id, true)
		sl.mu.Lock()
		// Evict may have dropped the slot after lookup; retry with a fresh one.
		if sl.evicted {
			sl.mu.Unlock()
			continue
		}
		sl.origin = station
		sl.touched = s.now()
		sl.mu.Unlock()
		return nil
	}
}

// Len returns the number of sessions with a recorded origin.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Evict drops sessions not updated within idle and returns how many were
// removed.
func (s *MemStore) Evict(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sl := range s.slots {
		sl.mu.Lock()
		if sl.touched.Before(cutoff) {
			sl.evicted = true
			delete(s.slots, id)
			n++
		}
		sl.mu.Unlock()
	}
	return n
}

// RunEvictor calls Evict every interval until ctx is done.
func (s *MemStore) RunEvictor(ctx context.Context, interval, idle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict(idle)
		}
	}
}
