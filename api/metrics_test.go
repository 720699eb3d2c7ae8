package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.UnixMilli(1_760_000_000_000)

func collect() (*alertMonitor, *[]AlertEvent) {
	var alerts []AlertEvent
	return newAlertMonitor(func(e AlertEvent) { alerts = append(alerts, e) }), &alerts
}

func TestAuthFailureSpikeAlert(t *testing.T) {
	m, alerts := collect()
	m.watches[AuditAuthFailure].threshold = 5

	for i := range 4 {
		m.observe(AuditAuthFailure, t0.Add(time.Duration(i)*time.Second))
	}
	assert.Empty(t, *alerts, "no alert below threshold")

	m.observe(AuditAuthFailure, t0.Add(5*time.Second))
	require.Len(t, *alerts, 1)
	assert.Equal(t, AlertAuthFailureSpike, (*alerts)[0].Type)
	assert.Equal(t, 5, (*alerts)[0].Count)
	assert.Equal(t, 5, (*alerts)[0].Threshold)
}

func TestDeniedConnectSpikeAlert(t *testing.T) {
	m, alerts := collect()
	m.watches[AuditConnectDenied].threshold = 3

	for range 3 {
		m.observe(AuditConnectDenied, t0)
	}
	require.Len(t, *alerts, 1)
	assert.Equal(t, AlertDeniedConnectSpike, (*alerts)[0].Type)
}

func TestAlertIgnoresUnwatchedEvents(t *testing.T) {
	m, alerts := collect()
	for range 100 {
		m.observe(AuditEntryGranted, t0)
		m.observe(AuditConnectAllowed, t0)
	}
	assert.Empty(t, *alerts)
}

func TestAlertWithoutCallback(t *testing.T) {
	m := newAlertMonitor(nil)
	m.observe(AuditAuthFailure, t0)

	var nilMonitor *alertMonitor
	nilMonitor.observe(AuditAuthFailure, t0)
}

func TestAlertSlidingWindowExpiry(t *testing.T) {
	m, alerts := collect()
	m.watches[AuditAuthFailure].threshold = 5
	m.watches[AuditAuthFailure].window = time.Minute

	for range 4 {
		m.observe(AuditAuthFailure, t0)
	}
	m.observe(AuditAuthFailure, t0.Add(2*time.Minute))
	assert.Empty(t, *alerts, "failures outside the window do not count")
}

func TestAlertResetAfterFiring(t *testing.T) {
	m, alerts := collect()
	m.watches[AuditAuthFailure].threshold = 3

	for range 3 {
		m.observe(AuditAuthFailure, t0)
	}
	require.Len(t, *alerts, 1, "first alert triggered")

	for range 2 {
		m.observe(AuditAuthFailure, t0)
	}
	assert.Len(t, *alerts, 1, "no second alert yet")

	m.observe(AuditAuthFailure, t0)
	assert.Len(t, *alerts, 2, "second alert triggered")
}

func TestTrimWindow(t *testing.T) {
	times := []time.Time{t0, t0.Add(30 * time.Second), t0.Add(90 * time.Second)}
	got := trimWindow(times, t0.Add(100*time.Second), time.Minute)
	assert.Equal(t, times[2:], got)
}
