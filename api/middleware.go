package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// AuthMiddleware requires "Authorization: Bearer <token>" matching the admin
// token. The comparison runs in constant time against the enclave contents.
// Clients that keep presenting bad tokens are locked out with 429.
func (a *API) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, a.trustedProxies)
		if blocked, retryAfter := a.lockout.check(ip); blocked {
			a.audit.record(AuditRateLimited, r, slog.String("client_ip", ip))
			w.Header().Set("Retry-After", retryAfterString(retryAfter))
			writeError(w, http.StatusTooManyRequests, "too many failed attempts; try again later")
			return
		}

		if a.token == nil {
			a.audit.record(AuditAuthFailure, r,
				slog.String("client_ip", ip),
				slog.String("reason", "admin token not configured"))
			writeError(w, http.StatusUnauthorized, "admin token not configured")
			return
		}

		presented, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || presented == "" {
			a.fail(w, r, ip, "missing bearer token")
			return
		}

		buf, err := a.token.Open()
		if err != nil {
			a.logger.Error("opening admin token enclave", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		match := subtle.ConstantTimeCompare(buf.Bytes(), []byte(presented)) == 1
		buf.Destroy()

		if !match {
			a.fail(w, r, ip, "invalid bearer token")
			return
		}
		a.lockout.recordSuccess(ip)
		next.ServeHTTP(w, r)
	})
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, ip, reason string) {
	a.lockout.recordFailure(ip)
	a.audit.record(AuditAuthFailure, r,
		slog.String("client_ip", ip),
		slog.String("reason", reason))
	w.Header().Set("WWW-Authenticate", `Bearer realm="whitetemp"`)
	writeError(w, http.StatusUnauthorized, reason)
}

// RateLimit answers 429 once the shared request budget is exhausted.
func (a *API) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.limiter.Allow() {
			a.audit.record(AuditRateLimited, r)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
