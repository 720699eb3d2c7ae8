// Package duration parses operator-entered durations such as "10m" or "1Y"
// and renders remaining time as a compact "1d 2h 3m 4s" breakdown.
//
// Durations are whole milliseconds held in an int64, not time.Duration:
// grants of several centuries ("999Y") are valid and do not fit in
// nanoseconds.
package duration

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidFormat is returned when a duration is not <digits><unit>.
	ErrInvalidFormat = errors.New("invalid duration format")
	// ErrOutOfRange is returned when a well-formed duration overflows an
	// int64 count of milliseconds. It wraps ErrInvalidFormat.
	ErrOutOfRange = fmt.Errorf("%w: value out of range", ErrInvalidFormat)
)

// Unit lengths in milliseconds. Month and Year use fixed lengths; there is
// no calendar arithmetic.
const (
	Second int64 = 1000
	Minute       = 60 * Second
	Hour         = 60 * Minute
	Day          = 24 * Hour
	Month        = 30 * Day
	Year         = 365 * Day
)

// Unit is one of the closed set of suffixes accepted by Parse.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
	Days
	Months
	Years
)

var units = [...]struct {
	suffix byte
	name   string
	millis int64
}{
	Seconds: {'s', "seconds", Second},
	Minutes: {'m', "minutes", Minute},
	Hours:   {'h', "hours", Hour},
	Days:    {'d', "days", Day},
	Months:  {'M', "months", Month},
	Years:   {'Y', "years", Year},
}

// ParseUnit maps a suffix letter to its Unit. Suffixes are case-sensitive:
// "m" is minutes and "M" is months.
func ParseUnit(suffix byte) (Unit, bool) {
	for u, def := range units {
		if def.suffix == suffix {
			return Unit(u), true
		}
	}
	return 0, false
}

// Millis returns the length of one unit in milliseconds.
func (u Unit) Millis() int64 { return units[u].millis }

// Suffix returns the letter that selects u in Parse.
func (u Unit) Suffix() byte { return units[u].suffix }

func (u Unit) String() string { return units[u].name }

var pattern = regexp.MustCompile(`^(\d+)([smhdMY])$`)

// Parse converts text of the form <digits><unit> into milliseconds. Zero
// values such as "0s" are accepted; callers that need a positive duration
// must check for it.
func Parse(text string) (int64, error) {
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return 0, fmt.Errorf("%q: %w", text, ErrInvalidFormat)
	}
	unit, _ := ParseUnit(m[2][0])
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", text, ErrOutOfRange)
	}
	size := unit.Millis()
	if n > math.MaxInt64/size {
		return 0, fmt.Errorf("%q: %w", text, ErrOutOfRange)
	}
	return n * size, nil
}

// Add returns t plus ms milliseconds, truncated to the millisecond. The sum
// saturates at the int64 millisecond range instead of wrapping.
func Add(t time.Time, ms int64) time.Time {
	base := t.UnixMilli()
	switch {
	case ms > 0 && base > math.MaxInt64-ms:
		return time.UnixMilli(math.MaxInt64)
	case ms < 0 && base < math.MinInt64-ms:
		return time.UnixMilli(math.MinInt64)
	}
	return time.UnixMilli(base + ms)
}

// Remaining returns the milliseconds from now until expiresAt, negative once
// it has passed.
func Remaining(expiresAt, now time.Time) int64 {
	return expiresAt.UnixMilli() - now.UnixMilli()
}

// FormatRemaining renders ms as space-separated days, hours, minutes and
// seconds, omitting zero components. Anything at or below zero is "expired".
// Sub-second precision is truncated.
func FormatRemaining(ms int64) string {
	if ms <= 0 {
		return "expired"
	}
	secs := ms / Second
	parts := []struct {
		n      int64
		suffix string
	}{
		{secs / 86400, "d"},
		{secs / 3600 % 24, "h"},
		{secs / 60 % 60, "m"},
		{secs % 60, "s"},
	}
	var b strings.Builder
	for _, p := range parts {
		if p.n == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatInt(p.n, 10))
		b.WriteString(p.suffix)
	}
	return b.String()
}
