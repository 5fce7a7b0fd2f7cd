/*
Package relay contains the core logic of the session relay.

This file defines the per-connection finite state machine and the Session
struct holding a connection's coordination state.
*/
package relay

// State enumerates the lifecycle of a relay connection.
type State int

const (
	// StateConnecting is the initial state before authentication completes.
	StateConnecting State = iota

	// StateAuthenticated means the handshake token was verified; the
	// connection sits in the lobby until it joins a slug.
	StateAuthenticated

	// StateJoined means the connection belongs to a slug group and may relay events.
	StateJoined

	// StateDisconnecting means teardown notifications are in flight.
	StateDisconnecting

	// StateClosed means no further events are processed for this connection.
	StateClosed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateJoined:
		return "joined"
	case StateDisconnecting:
		return "disconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session holds the coordination state of one live connection. It is created
// when authentication succeeds and destroyed on disconnect. Fields beyond the
// immutable ones are mutated only from the connection's own event goroutine.
type Session struct {
	// ID is the transport connection identifier.
	ID string

	// Identity is the authenticated participant identity.
	Identity Identity

	// TokenSlug is the slug claim carried by the verified token, used to
	// cross-check join requests.
	TokenSlug string

	// state is the current position in the connection lifecycle.
	state State

	// slug is the joined session, set at most once.
	slug string

	// key is the stable participant key ("u:{user_id}"), recorded on join.
	key string
}

// State reports the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Slug reports the joined slug, or "" before a successful join.
func (s *Session) Slug() string {
	return s.slug
}
