// Package api exposes the whitelist over HTTP: an operator API for grant,
// revoke, prolong, check and list, and webhook endpoints a host runtime calls
// on connect and disconnect.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/awnumar/memguard"
	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"
	"golang.org/x/time/rate"

	"github.com/jmcleod/whitetemp/command"
	"github.com/jmcleod/whitetemp/gate"
	"github.com/jmcleod/whitetemp/whitelist"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	store   *whitelist.Store
	gate    gate.Connector
	surface *command.Surface
	now     func() time.Time
	logger  *slog.Logger
	token   *memguard.Enclave
	limiter *rate.Limiter
	audit   *auditLogger
	lockout *authLockout

	trustedProxies []netip.Prefix

	alertFn     AlertFunc
	webhookURL  string
	webhookAuth string
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithClock sets the time source used to compute remaining time. Default: time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *API) {
		a.now = now
	}
}

// WithAdminToken sets the bearer token operators must present. The token is
// moved into a memguard enclave. Without a token every protected route
// answers 401.
func WithAdminToken(token string) Option {
	return func(a *API) {
		if token != "" {
			a.token = memguard.NewEnclave([]byte(token))
		}
	}
}

// WithRateLimit limits protected routes to r requests per second with the
// given burst. Default: 20/s, burst 50.
func WithRateLimit(r float64, burst int) Option {
	return func(a *API) {
		a.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithAlertFunc registers a callback for anomaly alerts such as a spike in
// failed admin logins or denied connections. Alerts are always logged.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithAuditWebhook forwards every audit event and alert to url as JSON.
// header, if non-empty, is sent with each request in "Name: value" form.
func WithAuditWebhook(url, header string) Option {
	return func(a *API) {
		a.webhookURL = url
		a.webhookAuth = header
	}
}

// New creates a new API instance. The store, gate and surface must share
// the same whitelist.Store.
func New(store *whitelist.Store, g gate.Connector, surface *command.Surface, opts ...Option) *API {
	a := &API{
		store:   store,
		gate:    g,
		surface: surface,
		now:     time.Now,
		limiter: rate.NewLimiter(rate.Limit(20), 50),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	base := a.logger
	a.logger = base.With("component", "api")

	a.lockout = newAuthLockout(a.now)
	a.audit = newAuditLogger(base, a.now)
	a.audit.alerts = newAlertMonitor(func(e AlertEvent) {
		a.audit.alert(e)
		if a.alertFn != nil {
			a.alertFn(e)
		}
	})
	if a.webhookURL != "" {
		a.audit.webhook = newAuditWebhook(a.webhookURL, a.webhookAuth, base)
	}
	return a
}

// Close flushes queued audit webhook deliveries.
func (a *API) Close() {
	if a.audit.webhook != nil {
		a.audit.webhook.close()
	}
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Group(func(r chi.Router) {
		r.Use(a.RateLimit)
		r.Use(a.AuthMiddleware)

		r.Get("/entries", a.ListEntries)
		r.Route("/entries/{identity}", func(r chi.Router) {
			r.Get("/", a.GetEntry)
			r.Put("/", a.GrantEntry)
			r.Delete("/", a.RevokeEntry)
			r.Post("/prolong", a.ProlongEntry)
		})
		r.Post("/commands", a.RunCommand)
		r.Post("/events/connect", a.Connect)
		r.Post("/events/disconnect", a.Disconnect)
	})

	return r
}
