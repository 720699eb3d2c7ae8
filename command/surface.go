// Package command implements the operator commands that manage the
// whitelist: wtadd, wtrem, wtprlng, wtcheck and wtlist.
//
// Each operation returns the reply for the operator, or an error whose text is
// fit to show them.
package command

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmcleod/whitetemp/duration"
	"github.com/jmcleod/whitetemp/whitelist"
)

const saveWarning = " (warning: changes could not be saved)"

// Option configures a Surface.
type Option func(*Surface)

// WithClock sets the time source. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Surface) { s.now = now }
}

// WithLogger sets the structured logger. If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Surface) { s.logger = logger }
}

// WithPrivilege replaces DefaultPrivilege as the check applied by Execute.
func WithPrivilege(p Privilege) Option {
	return func(s *Surface) { s.privilege = p }
}

// Surface runs operator commands against a whitelist.Store.
type Surface struct {
	store     *whitelist.Store
	now       func() time.Time
	logger    *slog.Logger
	privilege Privilege
}

// New creates a Surface over store.
func New(store *whitelist.Store, opts ...Option) *Surface {
	s := &Surface{
		store:     store,
		now:       time.Now,
		privilege: DefaultPrivilege,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "command")
	return s
}

// parsePositive accepts only durations that parse and are greater than zero.
// The result is in milliseconds.
func parsePositive(text string) (int64, error) {
	d, err := duration.Parse(text)
	if err == nil && d <= 0 {
		err = duration.ErrInvalidFormat
	}
	if err != nil {
		return 0, fmt.Errorf("%w: use s, m, h, d, M, or Y (e.g. 30m, 7d)", duration.ErrInvalidFormat)
	}
	return d, nil
}

// persisted appends a warning to reply when err is a persistence failure.
// The mutation has already been applied in memory at that point.
func (s *Surface) persisted(reply string, err error) (string, error) {
	if err == nil {
		return reply, nil
	}
	if errors.Is(err, whitelist.ErrPersistence) {
		s.logger.Warn("whitelist change not persisted", "error", err)
		return reply + saveWarning, nil
	}
	return "", err
}

// Grant gives identity access for durationText from now, replacing any
// existing grant.
func (s *Surface) Grant(identity, durationText string) (string, error) {
	reply, _, err := s.GrantUntil(identity, durationText)
	return reply, err
}

// GrantUntil is Grant that also returns the expiration it stored.
func (s *Surface) GrantUntil(identity, durationText string) (string, time.Time, error) {
	d, err := parsePositive(durationText)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := duration.Add(s.now(), d)
	err = s.store.Grant(identity, expiresAt)
	reply, err := s.persisted(fmt.Sprintf("Added %s to the whitelist for %s.", identity, durationText), err)
	if err != nil {
		return "", time.Time{}, err
	}
	return reply, expiresAt, nil
}

// Revoke removes identity. It reports success whether or not an entry existed.
func (s *Surface) Revoke(identity string) (string, error) {
	err := s.store.Revoke(identity)
	return s.persisted(fmt.Sprintf("Removed %s from the whitelist.", identity), err)
}

// Prolong extends identity's access by durationText. Identities that were
// never granted are refused.
func (s *Surface) Prolong(identity, durationText string) (string, error) {
	reply, _, err := s.ProlongUntil(identity, durationText)
	return reply, err
}

// ProlongUntil is Prolong that also returns the new expiration.
func (s *Surface) ProlongUntil(identity, durationText string) (string, time.Time, error) {
	d, err := parsePositive(durationText)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt, err := s.store.Prolong(identity, d)
	if errors.Is(err, whitelist.ErrNoSuchIdentity) {
		return "", time.Time{}, fmt.Errorf("player %s is %w (%w)", identity, ErrNotWhitelisted, whitelist.ErrNoSuchIdentity)
	}
	remaining := duration.FormatRemaining(duration.Remaining(expiresAt, s.now()))
	reply, err := s.persisted(fmt.Sprintf("Prolonged %s's whitelist time by %s. Remaining: %s.", identity, durationText, remaining), err)
	if err != nil {
		return "", time.Time{}, err
	}
	return reply, expiresAt, nil
}

// Check reports how long identity has left. Lapsed entries report "expired".
func (s *Surface) Check(identity string) (string, error) {
	expiresAt, ok := s.store.Expiration(identity)
	if !ok {
		return "", fmt.Errorf("player %s is %w", identity, ErrNotWhitelisted)
	}
	return fmt.Sprintf("Player %s is whitelisted for: %s", identity, duration.FormatRemaining(duration.Remaining(expiresAt, s.now()))), nil
}

// List reports every entry with its remaining time, one per line.
func (s *Surface) List() (string, error) {
	entries := s.store.Entries()
	if len(entries) == 0 {
		return "The whitelist is empty.", nil
	}
	now := s.now()
	var b strings.Builder
	fmt.Fprintf(&b, "%d whitelisted:", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&b, "\n  %s: %s", e.Identity, duration.FormatRemaining(duration.Remaining(e.ExpiresAt, now)))
	}
	return b.String(), nil
}
