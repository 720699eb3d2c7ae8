// Package whitelist implements the temporary-membership store: a mapping of
// identity to expiration time, persisted through a storage.Backend and safe
// for concurrent use.
//
// The store never evicts expired entries. An entry whose expiration has passed
// is still reported by Expiration so callers can tell "expired" apart from
// "never granted".
package whitelist

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jmcleod/whitetemp/duration"
	"github.com/jmcleod/whitetemp/storage"
)

// Entry is a single identity and the instant its access ends.
type Entry struct {
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the entry has lapsed at now.
func (e Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store holds whitelist entries in memory and mirrors every mutation to its
// backend before returning.
//
// Reads share a read lock. Mutations, Load and Save hold the write lock for
// their whole duration, backend I/O included, so no caller observes a half
// applied change.
type Store struct {
	backend storage.Backend
	now     func() time.Time
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]int64
}

// New creates an empty Store over backend. Call Load to pick up persisted
// entries.
func New(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		entries: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "whitelist", "path", backend.Path())
	return s
}

// Load merges persisted entries into memory. Persisted values overwrite
// in-memory entries with the same identity; in-memory entries missing from
// the backend are kept. Concurrent loads therefore commute.
//
// A read failure is logged and leaves memory untouched. The returned error
// wraps ErrPersistence.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loaded, err := s.backend.Load()
	if err != nil {
		s.logger.Error("failed to load whitelist", "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	for identity, millis := range loaded {
		s.entries[Normalize(identity)] = millis
	}
	return nil
}

// Save writes the full in-memory mapping to the backend.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if err := s.backend.Save(s.entries); err != nil {
		s.logger.Error("failed to save whitelist", "error", err, "entries", len(s.entries))
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Grant sets identity's expiration, replacing any existing one, and saves.
// The in-memory change stands even when the save fails.
func (s *Store) Grant(identity string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[Normalize(identity)] = expiresAt.UnixMilli()
	return s.saveLocked()
}

// Revoke removes identity and saves. Revoking an absent identity is not an
// error.
func (s *Store) Revoke(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, Normalize(identity))
	return s.saveLocked()
}

// Expiration returns identity's expiration and whether an entry exists.
// Expired entries are returned with ok set.
func (s *Store) Expiration(identity string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	millis, ok := s.entries[Normalize(identity)]
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// Prolong extends identity's access by extraMillis. A lapsed entry restarts
// from now; a live one is extended from its current expiration. The new
// expiration is returned. Prolonging an identity that was never granted
// fails with ErrNoSuchIdentity and changes nothing.
func (s *Store) Prolong(identity string, extraMillis int64) (time.Time, error) {
	key := Normalize(identity)

	s.mu.Lock()
	defer s.mu.Unlock()

	millis, ok := s.entries[key]
	if !ok {
		return time.Time{}, fmt.Errorf("%s: %w", identity, ErrNoSuchIdentity)
	}
	now := s.now()
	base := time.UnixMilli(millis)
	if now.After(base) {
		base = now
	}
	expiresAt := duration.Add(base, extraMillis)
	s.entries[key] = expiresAt.UnixMilli()
	return expiresAt, s.saveLocked()
}

// Entries returns a snapshot of all entries sorted by identity.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for identity, millis := range s.entries {
		out = append(out, Entry{Identity: identity, ExpiresAt: time.UnixMilli(millis)})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// Len returns the number of entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
