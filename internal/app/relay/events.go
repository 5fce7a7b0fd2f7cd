/*
Package relay contains the core logic of the session relay: slug-scoped
membership, event dispatch, rate limiting, and the broadcast fan-out that
connects collaborating clients.

This file defines the wire envelope, the event names, and the payload types
exchanged with clients.
*/
package relay

import "encoding/json"

// Identity represents the authenticated participant identity, derived once at
// connection time from a verified token and immutable for the connection's lifetime.
type Identity struct {
	// UserID is the unique identifier for the user, in normalized string form.
	UserID string `json:"user_id"`

	// DisplayName is the name shown to other participants.
	DisplayName string `json:"display_name"`
}

// Presence statuses reported to the external record store.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Inbound event names.
const (
	EventJoin         = "join"
	EventStateUpdate  = "state:update"
	EventSessionEnd   = "session:end"
	EventPresencePing = "presence:ping"
)

// Outbound event names.
const (
	EventUserJoin     = "user:join"
	EventUserPresence = "user:presence"
	EventUserLeave    = "user:leave"
	EventSessionEnded = "session:ended"
	EventError        = "error"
)

// Envelope is the wire frame for every event in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// UserJoinPayload announces a participant joining the session.
type UserJoinPayload struct {
	ID   string   `json:"id"`
	User Identity `json:"user"`
	Key  string   `json:"key"`
}

// UserLeavePayload announces a participant leaving the session.
type UserLeavePayload struct {
	ID   string   `json:"id"`
	User Identity `json:"user"`
}

// UserPresencePayload is the liveness heartbeat relayed to the session.
type UserPresencePayload struct {
	Key      string `json:"key"`
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

// StateUpdatePayload carries a state diff relayed to the other participants.
type StateUpdatePayload struct {
	Diff json.RawMessage `json:"diff"`
	User Identity        `json:"user"`
}

// SessionEndedPayload notifies the session that a participant ended it.
// This is a notification only; the group is not torn down.
type SessionEndedPayload struct {
	EndedBy Identity `json:"endedBy"`
}

// ErrorPayload reports a recoverable validation failure to the offending sender.
type ErrorPayload struct {
	Message string `json:"message"`
}
