// Package bbolt provides a BBolt-backed storage backend.
package bbolt

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/whitetemp/storage"
)

var bucketName = []byte("whitetemp")

// Backend implements storage.Backend backed by a BBolt database. Every Save
// rewrites the bucket inside a single Update transaction.
type Backend struct {
	db     *bbolt.DB
	closed atomic.Bool
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend returns a Backend using the given BBolt database.
func NewBackend(db *bbolt.DB) *Backend {
	return &Backend{db: db}
}

// NewBackendFromFile opens a BBolt database at the given path and returns a new Backend.
func NewBackendFromFile(path string, options *bbolt.Options) (*Backend, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewBackend(db), nil
}

// Close closes the underlying BBolt database.
func (b *Backend) Close() error {
	if b.closed.Swap(true) {
		return nil
	}
	return b.db.Close()
}

func (b *Backend) Path() string { return b.db.Path() }

func (b *Backend) Load() (map[string]int64, error) {
	if b.closed.Load() {
		return nil, storage.ErrClosed
	}
	entries := make(map[string]int64)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bk := tx.Bucket(bucketName)
		if bk == nil {
			return nil
		}
		return bk.ForEach(func(k, v []byte) error {
			if len(v) != 8 {
				return fmt.Errorf("%w: %q has %d-byte value", storage.ErrCorrupt, k, len(v))
			}
			entries[string(k)] = int64(binary.BigEndian.Uint64(v))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (b *Backend) Save(entries map[string]int64) error {
	if b.closed.Load() {
		return storage.ErrClosed
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketName) != nil {
			if err := tx.DeleteBucket(bucketName); err != nil {
				return err
			}
		}
		bk, err := tx.CreateBucket(bucketName)
		if err != nil {
			return err
		}
		for identity, millis := range entries {
			var v [8]byte
			binary.BigEndian.PutUint64(v[:], uint64(millis))
			if err := bk.Put([]byte(identity), v[:]); err != nil {
				return fmt.Errorf("storing %q: %w", identity, err)
			}
		}
		return nil
	})
}
