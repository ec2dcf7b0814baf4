// Package session keeps per-conversation state for in-progress dialogs.
//
// A [Store] maps a session key to a value with a create, mutate, destroy
// lifecycle. Mutations for one key are serialised by a per-key lock while
// different keys proceed in parallel. The store is bounded: the least
// recently used session is evicted when it is full, and sessions idle for
// longer than the configured timeout are expired by [Store.Run] or on their
// next access.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Default store parameters.
const (
	defaultMaxSessions = 1000
	defaultIdleTimeout = 30 * time.Minute
	minReapInterval    = time.Second
)

// Reason tells why a session left the store.
type Reason string

const (
	// ReasonClosed means the owner finished or cancelled the session.
	ReasonClosed Reason = "closed"

	// ReasonReplaced means a new session was started under the same key.
	ReasonReplaced Reason = "replaced"

	// ReasonExpired means the session was idle longer than the timeout.
	ReasonExpired Reason = "expired"

	// ReasonEvicted means the store was full.
	ReasonEvicted Reason = "evicted"
)

// Config configures a [Store].
type Config struct {
	// MaxSessions bounds the number of live sessions. Defaults to 1000.
	MaxSessions int

	// IdleTimeout expires sessions not touched for this long. Defaults to
	// 30 minutes.
	IdleTimeout time.Duration

	// OnRemove is called after a session leaves the store. It must not call
	// back into the store. May be nil.
	OnRemove func(key string, reason Reason)

	// Now overrides the clock, for tests.
	Now func() time.Time
}

type entry[T any] struct {
	mu     sync.Mutex
	value  T
	seen   atomic.Int64 // unix nanos of the last touch
	gone   atomic.Bool
	reason atomic.Value // Reason, set before an explicit removal
}

// Store holds session values keyed by string. It is safe for concurrent use.
type Store[T any] struct {
	mu       sync.Mutex // serialises create and remove against each other
	cache    *lru.Cache[string, *entry[T]]
	ttl      time.Duration
	now      func() time.Time
	onRemove func(string, Reason)
}

// New creates a [Store].
func New[T any](cfg Config) *Store[T] {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = defaultMaxSessions
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &Store[T]{
		ttl:      cfg.IdleTimeout,
		now:      cfg.Now,
		onRemove: cfg.OnRemove,
	}
	// NewWithEvict only fails for a non-positive size, excluded above.
	s.cache, _ = lru.NewWithEvict(cfg.MaxSessions, s.evicted)
	return s
}

// Start creates the session for key, replacing any existing one. It reports
// whether a session was replaced.
func (s *Store[T]) Start(key string, value T) bool {
	e := &entry[T]{value: value}
	e.seen.Store(s.now().UnixNano())

	s.mu.Lock()
	old, replaced := s.cache.Peek(key)
	if replaced {
		old.reason.Store(ReasonReplaced)
		old.gone.Store(true)
	}
	s.cache.Add(key, e)
	s.mu.Unlock()

	if replaced && s.onRemove != nil {
		s.onRemove(key, ReasonReplaced)
	}
	return replaced
}

// Do runs fn with exclusive access to the session value for key. When fn
// returns true the session is removed afterwards; otherwise its idle timer
// is reset. Do reports false, without calling fn, when key has no live
// session.
func (s *Store[T]) Do(key string, fn func(value *T) (remove bool)) bool {
	e, ok := s.cache.Get(key)
	if !ok {
		return false
	}
	if s.expired(e) {
		s.remove(key, e, ReasonExpired)
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone.Load() {
		return false
	}

	if fn(&e.value) {
		s.remove(key, e, ReasonClosed)
		return true
	}
	e.seen.Store(s.now().UnixNano())
	return true
}

// Close removes the session for key. It waits for an in-flight [Store.Do]
// on the same key and reports whether a session was removed.
func (s *Store[T]) Close(key string) bool {
	return s.Do(key, func(*T) bool { return true })
}

// Len returns the number of sessions held, including expired sessions not
// yet reaped.
func (s *Store[T]) Len() int {
	return s.cache.Len()
}

// Reap removes every idle session that is not currently being handled and
// returns how many were removed.
func (s *Store[T]) Reap() int {
	n := 0
	for _, key := range s.cache.Keys() {
		e, ok := s.cache.Peek(key)
		if !ok || !s.expired(e) {
			continue
		}
		if !e.mu.TryLock() {
			continue
		}
		if !e.gone.Load() {
			s.remove(key, e, ReasonExpired)
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Run reaps idle sessions periodically until ctx is cancelled.
func (s *Store[T]) Run(ctx context.Context) {
	interval := max(s.ttl/4, minReapInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reap()
		}
	}
}

func (s *Store[T]) expired(e *entry[T]) bool {
	return s.now().Sub(time.Unix(0, e.seen.Load())) > s.ttl
}

// remove drops e from the cache if it is still the entry stored under key.
func (s *Store[T]) remove(key string, e *entry[T], reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.gone.Load() {
		return
	}
	e.reason.Store(reason)
	e.gone.Store(true)
	if cur, ok := s.cache.Peek(key); ok && cur == e {
		s.cache.Remove(key)
	}
}

// evicted is the cache eviction callback. Entries already marked gone were
// removed explicitly and carry their reason; the rest fell off the LRU end.
func (s *Store[T]) evicted(key string, e *entry[T]) {
	reason := ReasonEvicted
	if e.gone.Swap(true) {
		if r, ok := e.reason.Load().(Reason); ok {
			reason = r
		}
	}
	if s.onRemove != nil {
		s.onRemove(key, reason)
	}
}
