// Package storagetest provides a conformance suite for storage.Backend
// implementations.
package storagetest

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/whitetemp/storage"
)

// Run exercises a backend produced by newBackend. Each subtest gets a fresh
// backend.
func Run(t *testing.T, newBackend func(t *testing.T) storage.Backend) {
	t.Helper()

	t.Run("LoadEmpty", func(t *testing.T) {
		b := newBackend(t)
		got, err := b.Load()
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("SaveLoad", func(t *testing.T) {
		b := newBackend(t)
		want := map[string]int64{
			"alice":   1700000000000,
			"bob":     -5,
			"carol":   0,
			"max":     math.MaxInt64,
			"min":     math.MinInt64,
			"ünicode": 42,
		}
		require.NoError(t, b.Save(want))
		got, err := b.Load()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Save(map[string]int64{"alice": 1, "bob": 2}))
		require.NoError(t, b.Save(map[string]int64{"bob": 3}))
		got, err := b.Load()
		require.NoError(t, err)
		assert.Equal(t, map[string]int64{"bob": 3}, got)
	})

	t.Run("SaveEmpty", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Save(map[string]int64{"alice": 1}))
		require.NoError(t, b.Save(map[string]int64{}))
		got, err := b.Load()
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("LoadReturnsCopy", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Save(map[string]int64{"alice": 1}))
		got, err := b.Load()
		require.NoError(t, err)
		got["alice"] = 99
		again, err := b.Load()
		require.NoError(t, err)
		assert.Equal(t, int64(1), again["alice"])
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		b := newBackend(t)
		var wg sync.WaitGroup
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, b.Save(map[string]int64{fmt.Sprintf("p%d", i): int64(i)}))
			}()
		}
		wg.Wait()
		got, err := b.Load()
		require.NoError(t, err)
		assert.Len(t, got, 1, "each save is a whole snapshot; one of them wins")
	})

	t.Run("Path", func(t *testing.T) {
		assert.NotEmpty(t, newBackend(t).Path())
	})
}
