package whitelist

import "errors"

var (
	// ErrNoSuchIdentity indicates an operation that requires an existing entry found none.
	ErrNoSuchIdentity = errors.New("no such identity")
	// ErrPersistence indicates the backend could not be read or written. The
	// in-memory state remains authoritative when it is returned.
	ErrPersistence = errors.New("whitelist persistence failure")
)
