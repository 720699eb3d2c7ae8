package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jmcleod/whitetemp/internal/uuid"
)

// AuditEvent identifies an operator or host action seen by the API.
type AuditEvent string

const (
	AuditEntryGranted   AuditEvent = "entry_granted"
	AuditEntryRevoked   AuditEvent = "entry_revoked"
	AuditEntryProlonged AuditEvent = "entry_prolonged"
	AuditCommandRun     AuditEvent = "command_run"
	AuditCommandFailed  AuditEvent = "command_failed"
	AuditConnectAllowed AuditEvent = "connect_allowed"
	AuditConnectDenied  AuditEvent = "connect_denied"
	AuditAuthFailure    AuditEvent = "auth_failure"
	AuditRateLimited    AuditEvent = "rate_limited"
)

// auditLogger writes audit lines, feeds the alert monitor and forwards
// each event to the webhook when one is configured.
type auditLogger struct {
	logger  *slog.Logger
	now     func() time.Time
	alerts  *alertMonitor
	webhook *auditWebhook
}

func newAuditLogger(logger *slog.Logger, now func() time.Time) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
		now:    now,
	}
}

func (al *auditLogger) record(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	at := al.now().UTC()
	id := uuid.New()

	base := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("event_id", id),
		slog.String("remote_addr", r.RemoteAddr),
	}
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", append(base, attrs...)...)

	al.alerts.observe(event, at)

	if al.webhook != nil {
		rec := auditRecord{
			ID:         id,
			Event:      string(event),
			RemoteAddr: r.RemoteAddr,
			Timestamp:  at.Format(time.RFC3339),
		}
		if len(attrs) > 0 {
			rec.Attrs = make(map[string]string, len(attrs))
			for _, a := range attrs {
				rec.Attrs[a.Key] = a.Value.String()
			}
		}
		al.webhook.enqueue(rec)
	}
}

// alert logs a triggered alert and forwards it like any other event.
func (al *auditLogger) alert(e AlertEvent) {
	al.logger.Warn("alert",
		slog.String("type", string(e.Type)),
		slog.String("message", e.Message),
		slog.Int("count", e.Count),
		slog.Int("threshold", e.Threshold))
	if al.webhook != nil {
		al.webhook.enqueue(auditRecord{
			ID:        uuid.New(),
			Event:     string(e.Type),
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Attrs:     map[string]string{"message": e.Message},
		})
	}
}
