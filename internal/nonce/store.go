// ABOUTME: Thread-safe replay store for PoP nonces.
// ABOUTME: Tracks (app, nonce) pairs with TTL expiry and bounded size.

package nonce

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxSize bounds the number of nonces tracked across all apps.
const DefaultMaxSize = 100000

// entry stores the timestamp and list element for a tracked nonce key.
type entry struct {
	seenAt  time.Time
	element *list.Element
}

// Store tracks nonces seen within the PoP timestamp window so a signed
// request cannot be replayed. Entries expire after the window passes;
// a doubly-linked list maintains insertion order for O(1) eviction when
// the store is at capacity.
type Store struct {
	mu      sync.Mutex
	seen    map[string]*entry
	order   *list.List // keys in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// NewStore creates a nonce store whose entries expire after ttl.
// A background goroutine periodically removes expired entries.
func NewStore(ttl time.Duration, maxSize int) *Store {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	s := &Store{
		seen:    make(map[string]*entry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Remember atomically checks whether the (appID, nonce) pair has been
// seen within the TTL and records it if not. Returns true if the pair
// was already seen (a replay), false if it is new and now recorded.
// The atomic check-and-record prevents two concurrent requests carrying
// the same nonce from both being admitted.
func (s *Store) Remember(appID, nonce string) bool {
	key := appID + "\x00" + nonce

	s.mu.Lock()
	defer s.mu.Unlock()

	// Inclusive: an entry exactly ttl old still counts as seen
	if e, ok := s.seen[key]; ok && time.Since(e.seenAt) <= s.ttl {
		return true
	}

	s.recordLocked(key)
	return false
}

// Seen reports whether the pair is currently tracked, without recording it.
func (s *Store) Seen(appID, nonce string) bool {
	key := appID + "\x00" + nonce

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.seen[key]
	return ok && time.Since(e.seenAt) <= s.ttl
}

// Len returns the number of tracked entries, including any not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// recordLocked records a key. Must be called with mu held.
func (s *Store) recordLocked(key string) {
	now := time.Now()

	// An expired entry being re-recorded keeps its slot
	if e, exists := s.seen[key]; exists {
		e.seenAt = now
		s.order.MoveToBack(e.element)
		return
	}

	if len(s.seen) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.order.PushBack(key)
	s.seen[key] = &entry{seenAt: now, element: elem}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (s *Store) evictOldest() {
	front := s.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	s.order.Remove(front)
	delete(s.seen, key)
}

// cleanup runs in a background goroutine, periodically removing expired entries.
func (s *Store) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runCleanup()
		case <-s.done:
			return
		}
	}
}

// runCleanup removes all expired entries.
func (s *Store) runCleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, e := range s.seen {
		if now.Sub(e.seenAt) > s.ttl {
			s.order.Remove(e.element)
			delete(s.seen, key)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		close(s.done)
		s.closed = true
	}
}
