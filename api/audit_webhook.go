package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// webhookQueueSize is the bounded channel capacity for outbound audit events.
const webhookQueueSize = 1024

// auditRecord is the JSON payload POSTed to the audit webhook.
type auditRecord struct {
	ID         string            `json:"id"`
	Event      string            `json:"event"`
	RemoteAddr string            `json:"remote_addr,omitempty"`
	Timestamp  string            `json:"timestamp"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// auditWebhook forwards audit records to an external HTTP endpoint.
// enqueue never blocks: records are dropped when the queue is full or the
// webhook has been closed.
type auditWebhook struct {
	url        string
	header     string // "Name: value", e.g. "Authorization: Bearer xxx"
	client     *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
	records    chan auditRecord
	wg         sync.WaitGroup

	mu     sync.RWMutex // guards closed and sends on records
	closed bool
}

func newAuditWebhook(url, header string, logger *slog.Logger) *auditWebhook {
	w := &auditWebhook{
		url:        url,
		header:     header,
		client:     &http.Client{Timeout: 10 * time.Second},
		retryDelay: time.Second,
		logger:     logger.With("component", "audit_webhook"),
		records:    make(chan auditRecord, webhookQueueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *auditWebhook) enqueue(rec auditRecord) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.logger.Warn("webhook closed, dropping audit record", "event", rec.Event)
		return
	}
	select {
	case w.records <- rec:
	default:
		w.logger.Warn("queue full, dropping audit record", "event", rec.Event)
	}
}

// close stops accepting records and waits for the queue to drain. It is
// safe to call more than once and concurrently with enqueue.
func (w *auditWebhook) close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.records)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *auditWebhook) loop() {
	defer w.wg.Done()
	for rec := range w.records {
		w.send(rec)
	}
}

// send POSTs rec with one retry on a transport error or 5xx.
func (w *auditWebhook) send(rec auditRecord) {
	body, err := json.Marshal(rec)
	if err != nil {
		w.logger.Warn("marshal failed", "error", err)
		return
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			time.Sleep(w.retryDelay)
		}

		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			w.logger.Warn("request creation failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "whitetemp-audit/1.0")
		if name, value, ok := strings.Cut(w.header, ":"); ok {
			req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
		}

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Warn("request failed", "error", err, "attempt", attempt)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return
		case resp.StatusCode >= 500:
			w.logger.Warn("server error", "status", resp.StatusCode, "attempt", attempt)
		default:
			w.logger.Warn("client error", "status", resp.StatusCode)
			return
		}
	}
}
