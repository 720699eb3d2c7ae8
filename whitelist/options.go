package whitelist

import (
	"log/slog"
	"time"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used by Prolong. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the structured logger for persistence failures.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}
