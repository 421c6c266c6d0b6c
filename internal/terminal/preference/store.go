package preference

import "sync/atomic"

// Store hands out the current preference snapshot. Implementations must be
// safe for concurrent use; callers may hold on to a returned value but should
// call Snapshot again at each point of use to observe later changes.
type Store interface {
	Snapshot() Preference
}

// StoreFunc adapts a function to the Store interface.
type StoreFunc func() Preference

func (f StoreFunc) Snapshot() Preference { return f() }

// StaticStore holds a swappable snapshot. Replace publishes a new snapshot
// that subsequent Snapshot calls observe.
type StaticStore struct {
	current atomic.Pointer[Preference]
}

// NewStore creates a store seeded with p.
func NewStore(p Preference) *StaticStore {
	s := &StaticStore{}
	s.Replace(p)
	return s
}

// Snapshot returns a copy of the current preferences.
func (s *StaticStore) Snapshot() Preference {
	if p := s.current.Load(); p != nil {
		return *p
	}
	return Default()
}

// Replace publishes p as the current snapshot.
func (s *StaticStore) Replace(p Preference) {
	s.current.Store(&p)
}

// Update applies fn to a copy of the current snapshot and publishes it.
func (s *StaticStore) Update(fn func(*Preference)) {
	for {
		old := s.current.Load()
		next := Default()
		if old != nil {
			next = *old
		}
		fn(&next)
		if s.current.CompareAndSwap(old, &next) {
			return
		}
	}
}
