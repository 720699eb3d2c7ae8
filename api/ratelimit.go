package api

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// ipMaxFailures is the number of bad admin tokens from one client
	// before lockout begins.
	ipMaxFailures = 20
	ipBaseLockout = 1 * time.Minute
	ipMaxLockout  = 30 * time.Minute
	// attemptExpiry is how long after the last failure before a record is
	// forgotten.
	attemptExpiry = 1 * time.Hour
	// maxTrackedClients triggers a sweep of stale records before a new
	// client is tracked.
	maxTrackedClients = 4096
)

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// authLockout tracks failed admin-token presentations per client IP and
// locks a client out with exponential backoff once ipMaxFailures is reached.
type authLockout struct {
	mu       sync.Mutex
	now      func() time.Time
	attempts map[string]*attemptRecord
}

func newAuthLockout(now func() time.Time) *authLockout {
	return &authLockout{
		now:      now,
		attempts: make(map[string]*attemptRecord),
	}
}

// check reports whether ip is locked out and for how long.
func (l *authLockout) check(ip string) (blocked bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.attempts[ip]
	if !ok {
		return false, 0
	}
	now := l.now()
	if now.Sub(rec.lastFailure) > attemptExpiry {
		delete(l.attempts, ip)
		return false, 0
	}
	if now.Before(rec.lockedUntil) {
		return true, rec.lockedUntil.Sub(now)
	}
	return false, 0
}

func (l *authLockout) recordFailure(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	rec, ok := l.attempts[ip]
	if !ok {
		if len(l.attempts) >= maxTrackedClients {
			l.sweepLocked(now)
		}
		rec = &attemptRecord{}
		l.attempts[ip] = rec
	} else if now.Sub(rec.lastFailure) > attemptExpiry {
		*rec = attemptRecord{}
	}
	rec.failures++
	rec.lastFailure = now

	if rec.failures >= ipMaxFailures {
		// ipBaseLockout * 2^(failures - ipMaxFailures), capped.
		lockout := ipBaseLockout
		for i := ipMaxFailures; i < rec.failures && lockout < ipMaxLockout; i++ {
			lockout *= 2
		}
		rec.lockedUntil = now.Add(min(lockout, ipMaxLockout))
	}
}

func (l *authLockout) recordSuccess(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, ip)
}

// sweepLocked drops records whose last failure is older than attemptExpiry.
func (l *authLockout) sweepLocked(now time.Time) {
	for ip, rec := range l.attempts {
		if now.Sub(rec.lastFailure) > attemptExpiry {
			delete(l.attempts, ip)
		}
	}
}

func retryAfterString(d time.Duration) string {
	return strconv.Itoa(max(int(d.Seconds()), 1))
}

// WithTrustedProxies lets the API take the client IP from X-Forwarded-For,
// Forwarded or X-Real-IP when the direct peer falls inside one of cidrs.
// Bare addresses are treated as single-host prefixes.
func WithTrustedProxies(cidrs []string) (Option, error) {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if !strings.Contains(c, "/") {
			addr, err := netip.ParseAddr(c)
			if err != nil {
				return nil, fmt.Errorf("invalid trusted proxy %q: %w", c, err)
			}
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(c)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", c, err)
		}
		prefixes = append(prefixes, p.Masked())
	}
	return func(a *API) {
		a.trustedProxies = prefixes
	}, nil
}

// clientIP returns the address used to key the auth lockout. Proxy headers
// are honored only when the direct peer is a trusted proxy.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	remote, _ := parseIPCandidate(r.RemoteAddr)
	if !peerTrusted(remote, trusted) {
		return remote
	}

	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip, ok := parseIPCandidate(part); ok {
			return ip
		}
	}
	for _, elem := range strings.Split(r.Header.Get("Forwarded"), ",") {
		for _, param := range strings.Split(elem, ";") {
			key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || !strings.EqualFold(key, "for") {
				continue
			}
			if ip, ok := parseIPCandidate(value); ok {
				return ip
			}
		}
	}
	if ip, ok := parseIPCandidate(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	return remote
}

func peerTrusted(remote string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(remote)
	if err != nil {
		return false
	}
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.Trim(strings.TrimSpace(raw), `"`)
	if s == "" {
		return "", false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
