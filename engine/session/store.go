package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// DefaultIdleTimeout evicts sessions idle for this long.
const DefaultIdleTimeout = 2 * time.Hour

// Store maps session ids to sessions. Operations on a single session are
// serialised by a per-session lock held for the whole turn; operations
// across sessions proceed in parallel. Eviction runs opportunistically on
// create and update under the same discipline.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time // injectable clock for tests

	evictions uint64
}

type entry struct {
	mu sync.Mutex
	s  *Session
}

// Option configures a Store.
type Option func(*Store)

// WithIdleTimeout overrides the eviction timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(st *Store) { st.timeout = d }
}

// WithClock injects a clock, for deterministic eviction tests.
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// NewStore builds an empty session store.
func NewStore(logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	st := &Store{
		sessions: make(map[string]*entry),
		timeout:  DefaultIdleTimeout,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// NewID mints a fresh session id.
func NewID() string {
	return shortuuid.New()
}

// WithTurn locks the session (creating it on first reference) and runs fn
// against it. The lock spans the whole turn so two concurrent turns on the
// same session observe either the pre- or post-state of the other, never a
// partial write. UpdatedAt is stamped after fn returns.
func (st *Store) WithTurn(id string, fn func(*Session) error) error {
	e := st.getOrCreate(id)
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := fn(e.s); err != nil {
		return err
	}
	e.s.UpdatedAt = st.now()
	return nil
}

// Peek returns a shallow copy of the session for read-only inspection, or
// false when the id is unknown (or already evicted).
func (st *Store) Peek(id string) (Session, bool) {
	st.mu.RLock()
	e, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	// idle past the timeout reads as gone even before the next sweep
	if e.s.UpdatedAt.Before(st.now().Add(-st.timeout)) {
		return Session{}, false
	}
	return *e.s, true
}

// Len reports the live session count.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Evictions reports the number of sessions removed so far.
func (st *Store) Evictions() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.evictions
}

func (st *Store) getOrCreate(id string) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.evictIdleLocked()
	e, ok := st.sessions[id]
	if !ok {
		now := st.now()
		e = &entry{s: &Session{ID: id, CreatedAt: now, UpdatedAt: now}}
		st.sessions[id] = e
	}
	return e
}

// evictIdleLocked removes sessions idle past the timeout. O(n) over
// sessions, acceptable while n stays small; a bounded LRU can replace it
// if that stops holding. A session whose turn is in flight holds its entry
// lock, so TryLock skips it for this sweep.
func (st *Store) evictIdleLocked() {
	cutoff := st.now().Add(-st.timeout)
	for id, e := range st.sessions {
		if !e.mu.TryLock() {
			continue
		}
		idle := e.s.UpdatedAt.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(st.sessions, id)
			st.evictions++
			st.logger.Info("session evicted", "session_id", id)
		}
	}
}
