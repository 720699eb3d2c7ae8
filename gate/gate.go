// Package gate decides, when an identity connects, whether the whitelist
// lets it in.
package gate

import (
	"log/slog"
	"time"

	"github.com/jmcleod/whitetemp/internal/uuid"
	"github.com/jmcleod/whitetemp/whitelist"
)

// Reason explains a denied connection.
type Reason string

const (
	ReasonNotAuthorized Reason = "not authorized"
	ReasonExpired       Reason = "access expired"
)

// Message returns the text shown to the refused player.
func (r Reason) Message() string {
	switch r {
	case ReasonNotAuthorized:
		return "You are not whitelisted on this server."
	case ReasonExpired:
		return "Your whitelist access has expired."
	default:
		return string(r)
	}
}

// Decision is the outcome of a connect check. When Allowed is false the host
// must refuse the connection with Reason.Message().
type Decision struct {
	Allowed bool
	Reason  Reason
	// Announce tells the host to broadcast the arrival.
	Announce bool
}

// Allow is the decision for an identity with live access.
func Allow() Decision { return Decision{Allowed: true, Announce: true} }

// Deny is the decision for a refused identity.
func Deny(reason Reason) Decision { return Decision{Reason: reason} }

// Connector is the pair of callbacks a host runtime invokes once per
// connect and disconnect event.
type Connector interface {
	OnConnect(identity string) Decision
	OnDisconnect(identity string) bool
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the time source. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the structured logger. If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) { g.logger = logger }
}

// Gate enforces a whitelist.Store at connect time.
type Gate struct {
	store  *whitelist.Store
	now    func() time.Time
	logger *slog.Logger
}

var _ Connector = (*Gate)(nil)

// New creates a Gate over store.
func New(store *whitelist.Store, opts ...Option) *Gate {
	g := &Gate{store: store, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "gate")
	return g
}

// OnConnect reloads the store, so out-of-process edits apply, and then
// checks identity. Absence is reported before expiry. A failed reload is
// logged by the store and the check proceeds against memory.
func (g *Gate) OnConnect(identity string) Decision {
	_ = g.store.Load()

	d := g.decide(identity)
	g.logger.Info("connect",
		slog.String("event_id", uuid.New()),
		slog.String("identity", identity),
		slog.Bool("allowed", d.Allowed),
		slog.String("reason", string(d.Reason)))
	return d
}

func (g *Gate) decide(identity string) Decision {
	expiresAt, ok := g.store.Expiration(identity)
	if !ok {
		return Deny(ReasonNotAuthorized)
	}
	if g.now().After(expiresAt) {
		return Deny(ReasonExpired)
	}
	return Allow()
}

// OnDisconnect reports whether the departure should be announced: only when
// identity still holds live access. It does not reload the store.
func (g *Gate) OnDisconnect(identity string) bool {
	expiresAt, ok := g.store.Expiration(identity)
	announce := ok && g.now().Before(expiresAt)
	g.logger.Debug("disconnect",
		slog.String("identity", identity),
		slog.Bool("announce", announce))
	return announce
}
