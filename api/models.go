package api

import "time"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DurationRequest is the body of grant and prolong requests.
type DurationRequest struct {
	Duration string `json:"duration"`
}

// EntryResponse describes one whitelist entry. ExpiresAt is omitted when the
// expiration lies past year 9999, which RFC 3339 cannot express.
type EntryResponse struct {
	Identity        string     `json:"identity"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	ExpiresAtMillis int64      `json:"expires_at_ms"`
	Remaining       string     `json:"remaining"`
	Expired         bool       `json:"expired"`
	Message         string     `json:"message,omitempty"`
}

// ListEntriesResponse is the body of GET /entries.
type ListEntriesResponse struct {
	Entries []EntryResponse `json:"entries"`
	PaginationMeta
}

// MessageResponse carries an operator-facing reply.
type MessageResponse struct {
	Message string `json:"message"`
}

// CommandRequest is the body of POST /commands.
type CommandRequest struct {
	Command string `json:"command"`
}

// IdentityRequest is the body of the connect and disconnect webhooks.
type IdentityRequest struct {
	Identity string `json:"identity"`
}

// ConnectResponse is the gate's decision for a connecting identity.
type ConnectResponse struct {
	Allowed  bool   `json:"allowed"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
	Announce bool   `json:"announce"`
}

// DisconnectResponse tells the host whether to announce a departure.
type DisconnectResponse struct {
	Announce bool `json:"announce"`
}
