package api

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertAuthFailureSpike   AlertType = "auth_failure_spike"
	AlertDeniedConnectSpike AlertType = "denied_connect_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

const (
	defaultAuthFailureWindow      = time.Minute
	defaultAuthFailureThreshold   = 20
	defaultDeniedConnectWindow    = time.Minute
	defaultDeniedConnectThreshold = 30
)

// watch counts one audit event over a trailing window.
type watch struct {
	alert     AlertType
	message   string
	window    time.Duration
	threshold int
	hits      []time.Time
}

// add records a hit at t and reports the count when the threshold is reached.
// The window restarts after firing so one spike raises one alert.
func (w *watch) add(t time.Time) (int, bool) {
	w.hits = trimWindow(append(w.hits, t), t, w.window)
	n := len(w.hits)
	if n < w.threshold {
		return n, false
	}
	w.hits = w.hits[:0]
	return n, true
}

// alertMonitor raises alerts when watched audit events spike.
type alertMonitor struct {
	mu      sync.Mutex
	watches map[AuditEvent]*watch
	alertFn AlertFunc
}

func newAlertMonitor(alertFn AlertFunc) *alertMonitor {
	return &alertMonitor{
		alertFn: alertFn,
		watches: map[AuditEvent]*watch{
			AuditAuthFailure: {
				alert:     AlertAuthFailureSpike,
				message:   "admin API authentication failures exceed threshold",
				window:    defaultAuthFailureWindow,
				threshold: defaultAuthFailureThreshold,
			},
			AuditConnectDenied: {
				alert:     AlertDeniedConnectSpike,
				message:   "denied connection attempts exceed threshold",
				window:    defaultDeniedConnectWindow,
				threshold: defaultDeniedConnectThreshold,
			},
		},
	}
}

func (m *alertMonitor) observe(event AuditEvent, at time.Time) {
	if m == nil || m.alertFn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.watches[event]
	if !ok {
		return
	}
	if n, fire := w.add(at); fire {
		m.alertFn(AlertEvent{
			Type:      w.alert,
			Message:   w.message,
			Count:     n,
			Threshold: w.threshold,
			Timestamp: at,
		})
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
