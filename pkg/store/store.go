// Package store holds the live board snapshot and tells observers about
// every change to it.
package store

import (
	"sort"
	"sync"

	"github.com/kanbanlive/boardsync.go/pkg/event"
	"github.com/kanbanlive/boardsync.go/pkg/logger"
	"github.com/kanbanlive/boardsync.go/pkg/models"
	"github.com/kanbanlive/boardsync.go/pkg/reducer"
)

// Observer is called after each change with the snapshot before and after it.
//
// Observers run synchronously on the goroutine that made the change, one at
// a time and in change order. They may read the store but must not modify
// it; doing so deadlocks.
type Observer func(prev, next models.Snapshot)

// Store owns the current snapshot.
//
// ApplyEvent, Replace and Update are serialized: each one computes the new
// snapshot, swaps it in and notifies observers before the next one starts,
// so observers never see a half applied state or changes out of order.
type Store struct {
	// writeMu serializes mutations together with their notifications.
	writeMu sync.Mutex

	mu      sync.RWMutex
	current models.Snapshot
	version uint64

	observersMu sync.Mutex
	observers   map[int]Observer
	nextID      int

	logger logger.Logger
}

type Option func(*Store)

func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

func New(initial models.Snapshot, opts ...Option) *Store {
	s := &Store{
		current:   initial,
		observers: make(map[int]Observer),
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the snapshot as of now.
func (s *Store) Current() models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Version is bumped on every change. It starts at zero.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ApplyEvent reduces ev into the current snapshot. It reports whether the
// snapshot changed; observers are only notified when it did.
func (s *Store) ApplyEvent(ev event.Event) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.Current()
	next := reducer.Reduce(prev, ev)
	if !reducer.Changed(prev, next) {
		s.logger.Debug("store.Store ignored event", "kind", ev.Kind())
		return false
	}

	s.swap(prev, next)
	return true
}

// Replace swaps in snap wholesale. It is used for rollbacks and full
// refreshes, and always notifies observers.
func (s *Store) Replace(snap models.Snapshot) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.swap(s.Current(), snap)
}

// Update computes a new snapshot from the current one and swaps it in, with
// no other change able to interleave. If fn returns an error or the same
// board and roster, nothing is swapped. Update returns the snapshot fn saw.
func (s *Store) Update(fn func(models.Snapshot) (models.Snapshot, error)) (models.Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev := s.Current()
	next, err := fn(prev)
	if err != nil {
		return prev, err
	}
	if reducer.Changed(prev, next) {
		s.swap(prev, next)
	}
	return prev, nil
}

// Subscribe registers obs and returns a function that removes it.
func (s *Store) Subscribe(obs Observer) (unsubscribe func()) {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.observers[id] = obs

	var once sync.Once
	return func() {
		once.Do(func() {
			s.observersMu.Lock()
			defer s.observersMu.Unlock()
			delete(s.observers, id)
		})
	}
}

// swap must be called with writeMu held.
func (s *Store) swap(prev, next models.Snapshot) {
	s.mu.Lock()
	s.current = next
	s.version++
	s.mu.Unlock()

	for _, obs := range s.snapshotObservers() {
		obs(prev, next)
	}
}

// snapshotObservers returns the observers in subscription order.
func (s *Store) snapshotObservers() []Observer {
	s.observersMu.Lock()
	defer s.observersMu.Unlock()

	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Observer, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.observers[id])
	}
	return out
}
