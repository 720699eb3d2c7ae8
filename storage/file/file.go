// Package file provides a storage.Backend kept in a single JSON document.
//
// The document is a flat object mapping identity to expiration in Unix
// milliseconds:
//
//	{
//	  "alice": 1767225600000,
//	  "bob": 1767312000000
//	}
//
// Reads accept JSONC (comments and trailing commas) so the file can be edited
// by hand while the server runs. Writes go to a temporary file in the same
// directory which is then renamed over the original.
package file

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/jmcleod/whitetemp/storage"
)

// DefaultPath is where the whitelist lives relative to the server's working directory.
const DefaultPath = "config/whitetemp_list.json"

const filePerm = 0o600

// Backend implements storage.Backend on top of a JSON file.
type Backend struct {
	path string
	mu   sync.Mutex // serializes writers within the process
}

var _ storage.Backend = (*Backend)(nil)

// NewBackend returns a Backend for path. The parent directory must already
// exist before the first Save; the backend never creates directories.
func NewBackend(path string) *Backend {
	return &Backend{path: path}
}

func (b *Backend) Path() string { return b.path }

// Load reads the file. A missing or empty file yields no entries. Values that
// are not integers, including null, are skipped.
func (b *Backend) Load() (map[string]int64, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]int64{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", b.path, err)
	}
	return decode(data)
}

func decode(data []byte) (map[string]int64, error) {
	entries := map[string]int64{}
	data = bytes.TrimSpace(jsonc.ToJSON(data))
	if len(data) == 0 {
		return entries, nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
	}
	for identity, v := range raw {
		if bytes.Equal(v, []byte("null")) {
			continue
		}
		var millis int64
		if err := json.Unmarshal(v, &millis); err != nil {
			continue
		}
		entries[identity] = millis
	}
	return entries, nil
}

// Save writes entries to a temporary sibling file, syncs it and renames it
// over the original, so a concurrent Load sees either the old or the new
// document.
func (b *Backend) Save(entries map[string]int64) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding whitelist: %w", err)
	}
	data = append(data, '\n')

	b.mu.Lock()
	defer b.mu.Unlock()

	dir, base := filepath.Split(b.path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", b.path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("replacing %s: %w", b.path, err)
	}
	committed = true
	return nil
}
