package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jmcleod/whitetemp/command"
	"github.com/jmcleod/whitetemp/duration"
	"github.com/jmcleod/whitetemp/whitelist"
)

// operatorHeader optionally names the human behind an API call, for logs.
const operatorHeader = "X-Operator"

func (a *API) entryResponse(e whitelist.Entry, message string) EntryResponse {
	now := a.now()
	resp := EntryResponse{
		Identity:        e.Identity,
		ExpiresAtMillis: e.ExpiresAt.UnixMilli(),
		Remaining:       duration.FormatRemaining(duration.Remaining(e.ExpiresAt, now)),
		Expired:         e.Expired(now),
		Message:         message,
	}
	if utc := e.ExpiresAt.UTC(); utc.Year() <= 9999 {
		resp.ExpiresAt = &utc
	}
	return resp
}

// writeEntry responds with identity's entry as of expiresAt.
func (a *API) writeEntry(w http.ResponseWriter, identity string, expiresAt time.Time, message string) {
	e := whitelist.Entry{Identity: whitelist.Normalize(identity), ExpiresAt: expiresAt}
	writeJSON(w, http.StatusOK, a.entryResponse(e, message))
}

func operator(r *http.Request) command.Source {
	name := strings.TrimSpace(r.Header.Get(operatorHeader))
	if name == "" {
		name = "api"
	}
	return command.Player{Handle: name, Level: command.OperatorLevel}
}

// ListEntries handles GET /entries. Entries are sorted by identity and
// paginated with the limit and offset query parameters; expired=true or
// expired=false keeps only lapsed or only live entries.
func (a *API) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries := a.store.Entries()

	if v := r.URL.Query().Get("expired"); v != "" {
		want, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "expired must be true or false")
			return
		}
		now := a.now()
		kept := entries[:0]
		for _, e := range entries {
			if e.Expired(now) == want {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	limit, offset := parsePagination(r)
	window, meta := page(entries, limit, offset)
	resp := ListEntriesResponse{
		Entries:        make([]EntryResponse, 0, len(window)),
		PaginationMeta: meta,
	}
	for _, e := range window {
		resp.Entries = append(resp.Entries, a.entryResponse(e, ""))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEntry handles GET /entries/{identity}.
func (a *API) GetEntry(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	expiresAt, ok := a.store.Expiration(identity)
	if !ok {
		writeError(w, http.StatusNotFound, "player "+identity+" is "+command.ErrNotWhitelisted.Error())
		return
	}
	a.writeEntry(w, identity, expiresAt, "")
}

// GrantEntry handles PUT /entries/{identity}.
func (a *API) GrantEntry(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	req, ok := decodeJSON[DurationRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	reply, expiresAt, err := a.surface.GrantUntil(identity, req.Duration)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.record(AuditEntryGranted, r,
		slog.String("operator", operator(r).Name()),
		slog.String("identity", identity),
		slog.String("duration", req.Duration))
	a.writeEntry(w, identity, expiresAt, reply)
}

// RevokeEntry handles DELETE /entries/{identity}. Revoking an absent
// identity succeeds.
func (a *API) RevokeEntry(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	reply, err := a.surface.Revoke(identity)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.record(AuditEntryRevoked, r,
		slog.String("operator", operator(r).Name()),
		slog.String("identity", identity))
	writeJSON(w, http.StatusOK, MessageResponse{Message: reply})
}

// ProlongEntry handles POST /entries/{identity}/prolong.
func (a *API) ProlongEntry(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	req, ok := decodeJSON[DurationRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	reply, expiresAt, err := a.surface.ProlongUntil(identity, req.Duration)
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.record(AuditEntryProlonged, r,
		slog.String("operator", operator(r).Name()),
		slog.String("identity", identity),
		slog.String("duration", req.Duration))
	a.writeEntry(w, identity, expiresAt, reply)
}

// RunCommand handles POST /commands. The caller runs as an operator.
func (a *API) RunCommand(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[CommandRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	src := operator(r)
	reply, err := a.surface.Execute(src, req.Command)
	if err != nil {
		a.audit.record(AuditCommandFailed, r,
			slog.String("operator", src.Name()),
			slog.String("command", req.Command),
			slog.String("error", err.Error()))
		mapError(w, err)
		return
	}
	a.audit.record(AuditCommandRun, r,
		slog.String("operator", src.Name()),
		slog.String("command", req.Command))
	writeJSON(w, http.StatusOK, MessageResponse{Message: reply})
}

// Connect handles POST /events/connect.
func (a *API) Connect(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[IdentityRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return
	}
	d := a.gate.OnConnect(req.Identity)
	resp := ConnectResponse{Allowed: d.Allowed, Announce: d.Announce}
	if d.Allowed {
		a.audit.record(AuditConnectAllowed, r, slog.String("identity", req.Identity))
	} else {
		resp.Reason = string(d.Reason)
		resp.Message = d.Reason.Message()
		a.audit.record(AuditConnectDenied, r,
			slog.String("identity", req.Identity),
			slog.String("reason", resp.Reason))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Disconnect handles POST /events/disconnect.
func (a *API) Disconnect(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[IdentityRequest](w, r, maxSmallBodySize)
	if !ok {
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "identity is required")
		return
	}
	writeJSON(w, http.StatusOK, DisconnectResponse{Announce: a.gate.OnDisconnect(req.Identity)})
}
