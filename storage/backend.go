// Package storage provides the persistence abstraction for the whitelist.
//
// A Backend holds a flat mapping of normalized identity to expiration time in
// Unix milliseconds. Backends always read and write the whole mapping; merge
// semantics belong to the caller.
package storage

import "errors"

var (
	// ErrClosed is returned by backends used after Close.
	ErrClosed = errors.New("backend closed")
	// ErrCorrupt is returned when persisted data cannot be decoded.
	ErrCorrupt = errors.New("corrupt whitelist data")
)

// Backend persists whitelist entries.
type Backend interface {
	// Load returns every persisted entry. A backend with nothing persisted
	// yet returns an empty map and a nil error.
	Load() (map[string]int64, error)
	// Save replaces the persisted entries with entries. A reader never
	// observes a partially written set.
	Save(entries map[string]int64) error
	// Path describes where entries are kept, for logs and operator messages.
	Path() string
}

// Clone returns a copy of entries that shares no state with the original.
func Clone(entries map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out
}
