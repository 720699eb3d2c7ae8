// Package listlock marks a whitelist as owned by a running server.
//
// The lock is a file next to the whitelist holding the owner's pid. It is
// advisory: one-shot commands check it before editing the whitelist behind
// the server's back.
package listlock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

// Path returns the lock file for the whitelist at listPath.
func Path(listPath string) string { return listPath + ".lock" }

// Lock is a held lock. Release removes it.
type Lock struct {
	path string
	pid  int
}

// Acquire takes the lock for listPath on behalf of this process. A lock
// left by another process is replaced and its pid returned as previous so
// the caller can report it.
func Acquire(listPath string) (lock *Lock, previous int, err error) {
	path := Path(listPath)
	pid := os.Getpid()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		previous, _ = Holder(listPath)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("creating lock file: %w", err)
	}
	if _, err := f.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("writing lock file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, 0, fmt.Errorf("writing lock file: %w", err)
	}
	return &Lock{path: path, pid: pid}, previous, nil
}

// Release removes the lock file if it still names this process.
func (l *Lock) Release() error {
	holder, err := readPID(l.path)
	if err != nil || holder != l.pid {
		return err
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing lock file: %w", err)
	}
	return nil
}

// Holder returns the pid recorded in listPath's lock file, or 0 when the
// whitelist is not locked.
func Holder(listPath string) (int, error) {
	return readPID(Path(listPath))
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading lock file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("lock file %s does not hold a pid", path)
	}
	return pid, nil
}
