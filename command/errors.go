package command

import "errors"

var (
	// ErrPermissionDenied is returned when the source fails the privilege check.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnknownCommand is returned for a command name Execute does not know.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrUsage is returned when a command gets the wrong number of arguments.
	ErrUsage = errors.New("usage")
	// ErrNotWhitelisted is returned when the identity has no entry.
	ErrNotWhitelisted = errors.New("not in the whitelist")
)
