// Package memory provides a process-local CacheStore for development and
// single-instance deployments.
package memory

import (
	"context"
	"sync"

	"github.com/couchcryptid/reasoning-cache-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Store is a bounded, thread-safe LRU CacheStore with per-entry expiration.
// Expired entries are dropped lazily on lookup; the least recently used entry
// is evicted once maxEntries is exceeded.
type Store struct {
	clock      clockwork.Clock
	maxEntries int
	mu         sync.Mutex
	entries    map[domain.CacheKey]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	value domain.CacheEntry
	prev  *entry
	next  *entry
}

// NewStore creates a store holding at most maxEntries entries.
func NewStore(maxEntries int, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:      clock,
		maxEntries: maxEntries,
		entries:    make(map[domain.CacheKey]*entry),
	}
}

func (s *Store) Get(_ context.Context, key domain.CacheKey) (domain.CacheEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return domain.CacheEntry{}, domain.ErrNotFound
	}
	if e.value.Expired(s.clock.Now()) {
		s.remove(e)
		delete(s.entries, key)
		return domain.CacheEntry{}, domain.ErrNotFound
	}
	s.moveToFront(e)
	return e.value, nil
}

func (s *Store) Put(_ context.Context, value domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[value.Key]; ok {
		e.value = value
		s.moveToFront(e)
		return nil
	}

	e := &entry{value: value}
	s.entries[value.Key] = e
	s.addToFront(e)

	if s.maxEntries > 0 && len(s.entries) > s.maxEntries {
		s.evictTail()
	}
	return nil
}

// Len returns the number of entries held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) moveToFront(e *entry) {
	if e == s.head {
		return
	}
	s.remove(e)
	s.addToFront(e)
}

func (s *Store) addToFront(e *entry) {
	e.next = s.head
	e.prev = nil
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *Store) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (s *Store) evictTail() {
	if s.tail == nil {
		return
	}
	tail := s.tail
	delete(s.entries, tail.value.Key)
	s.remove(tail)
}

var _ domain.CacheStore = (*Store)(nil)
