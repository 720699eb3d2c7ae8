package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/whitetemp/storage"
	"github.com/jmcleod/whitetemp/storage/storagetest"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	return NewBackend(filepath.Join(t.TempDir(), "whitetemp_list.json"))
}

func TestFileBackend(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Backend {
		return newTestBackend(t)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	b := newTestBackend(t)
	got, err := b.Load()
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = os.Stat(b.Path())
	assert.True(t, os.IsNotExist(err), "Load must not create the file")
}

func TestLoad_Documents(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want map[string]int64
	}{
		{"empty file", "", map[string]int64{}},
		{"null", "null", map[string]int64{}},
		{"empty object", "{}", map[string]int64{}},
		{"gson output", `{"alice":1700000000000,"bob":-1}`, map[string]int64{"alice": 1700000000000, "bob": -1}},
		{"comments and trailing comma", "{\n  // staff\n  \"alice\": 5, /* trial */ \"bob\": 6,\n}", map[string]int64{"alice": 5, "bob": 6}},
		{"non-integer values skipped", `{"alice": 5, "bob": "soon", "carol": 1.5, "dave": null, "erin": {"x": 1}}`, map[string]int64{"alice": 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBackend(t)
			require.NoError(t, os.WriteFile(b.Path(), []byte(tt.doc), 0o600))
			got, err := b.Load()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_Corrupt(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, os.WriteFile(b.Path(), []byte(`{"alice": 5`), 0o600))
	_, err := b.Load()
	assert.ErrorIs(t, err, storage.ErrCorrupt)

	require.NoError(t, os.WriteFile(b.Path(), []byte(`["alice"]`), 0o600))
	_, err = b.Load()
	assert.ErrorIs(t, err, storage.ErrCorrupt)
}

func TestSave_WritesFlatObject(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Save(map[string]int64{"bob": 2, "alice": 1}))

	data, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"alice\": 1,\n  \"bob\": 2\n}\n", string(data))

	info, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	b := newTestBackend(t)
	for i := range 5 {
		require.NoError(t, b.Save(map[string]int64{"alice": int64(i)}))
	}
	names, err := os.ReadDir(filepath.Dir(b.Path()))
	require.NoError(t, err)
	require.Len(t, names, 1)
	assert.Equal(t, "whitetemp_list.json", names[0].Name())
}

func TestSave_MissingDirectory(t *testing.T) {
	b := NewBackend(filepath.Join(t.TempDir(), "missing", "whitetemp_list.json"))
	err := b.Save(map[string]int64{"alice": 1})
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Dir(b.Path()))
	assert.True(t, os.IsNotExist(statErr), "Save must not create directories")
}

func TestSave_FailureKeepsPreviousDocument(t *testing.T) {
	b := newTestBackend(t)
	require.NoError(t, b.Save(map[string]int64{"alice": 1}))

	// Replace the target with a directory so the rename fails.
	require.NoError(t, os.Remove(b.Path()))
	require.NoError(t, os.Mkdir(b.Path(), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(b.Path(), "keep"), nil, 0o600))

	require.Error(t, b.Save(map[string]int64{"bob": 2}))
	names, err := os.ReadDir(filepath.Dir(b.Path()))
	require.NoError(t, err)
	assert.Len(t, names, 1, "temp file must be cleaned up")
}
