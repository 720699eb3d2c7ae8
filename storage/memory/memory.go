// Package memory provides a thread-safe in-memory implementation of storage.Backend.
package memory

import (
	"sync"

	"github.com/jmcleod/whitetemp/storage"
)

// Backend is a thread-safe in-memory storage.Backend.
// Suitable for testing, demos, and single-process use cases.
type Backend struct {
	mu      sync.RWMutex
	entries map[string]int64
	err     error
	saves   int
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend creates a new empty in-memory Backend.
func NewBackend() *Backend {
	return &Backend{entries: make(map[string]int64)}
}

func (b *Backend) Load() (map[string]int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.err != nil {
		return nil, b.err
	}
	return storage.Clone(b.entries), nil
}

func (b *Backend) Save(entries map[string]int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.entries = storage.Clone(entries)
	b.saves++
	return nil
}

func (b *Backend) Path() string { return "memory" }

// FailWith makes every subsequent Load and Save return err. A nil err
// restores normal operation.
func (b *Backend) FailWith(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.err = err
}

// Saves reports how many Save calls have succeeded.
func (b *Backend) Saves() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.saves
}
