// Package domain contains entity types without logic, just meta-data.
package domain

import "time"

type (
	SessionID     string
	ParticipantID string
	ConnectionID  string
)

// Participant states the cleanup logic recognizes. The state field itself
// is free-form: unknown values from clients are stored verbatim.
const (
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateFailed       = "failed"
	StateDisconnected = "disconnected"
)

// SessionMeta is descriptive provenance only. It is never consulted for
// authorization decisions.
type SessionMeta struct {
	CreatorAddr string `json:"creator_addr,omitempty"`
	ClientInfo  string `json:"client_info,omitempty"`
}

// Participant is a session-scoped identity bound 1:1 to a live connection.
type Participant struct {
	ID    ParticipantID `json:"id"`
	State string        `json:"state"`
}

// SessionInfo is a read-only view for APIs (no lock or timer fields).
type SessionInfo struct {
	ID               SessionID   `json:"id"`
	CreatedAt        time.Time   `json:"created_at"`
	ParticipantCount int         `json:"participant_count"`
	Meta             SessionMeta `json:"meta,omitempty"`
}
