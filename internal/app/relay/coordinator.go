/*
Package relay contains the core logic of the session relay.

This file defines the Coordinator, the orchestrator of the relay protocol.
Every inbound event is resolved through a dispatch table keyed by the
connection's lifecycle state and the event name; events with no entry for the
current state are inert. The coordinator consults the rate limiter, mutates
group membership through the transport, and keeps the external presence store
informed on join, heartbeat, and departure.
*/
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jozu2/pianogod-server/internal/pkg/logx"
	"github.com/jozu2/pianogod-server/internal/pkg/sessiontoken"
)

// PresenceNotifier forwards presence changes to the external record store.
// Implementations are best-effort: failures are logged by the implementation
// and never surfaced to the relay's event path.
type PresenceNotifier interface {
	NotifyPresence(ctx context.Context, slug string, user Identity, status string)
	NotifyLeave(ctx context.Context, slug string, user Identity)
}

// Coordinator processes transport events for all connections.
type Coordinator struct {
	transport Transport
	notifier  PresenceNotifier
	limiter   *EventLimiter

	// minimum intervals enforced per connection and event kind.
	stateUpdateInterval  time.Duration
	presencePingInterval time.Duration

	// mu protects the sessions map. Session fields themselves are mutated
	// only from the owning connection's event goroutine.
	mu       sync.Mutex
	sessions map[string]*Session

	logger zerolog.Logger

	// now is the clock used for last_seen stamps, overridable in tests.
	now func() time.Time
}

// NewCoordinator constructs a Coordinator over the given transport and notifier.
func NewCoordinator(transport Transport, notifier PresenceNotifier, stateUpdateInterval, presencePingInterval time.Duration) *Coordinator {
	return &Coordinator{
		transport:            transport,
		notifier:             notifier,
		limiter:              NewEventLimiter(),
		stateUpdateInterval:  stateUpdateInterval,
		presencePingInterval: presencePingInterval,
		sessions:             make(map[string]*Session),
		logger:               logx.Logger().With().Str("component", "coordinator").Logger(),
		now:                  time.Now,
	}
}

type eventHandler func(c *Coordinator, s *Session, data json.RawMessage)

// dispatch maps (state, event) to its handler. An event with no entry for the
// connection's current state is dropped: a duplicate join is an idempotent
// no-op, and data events before a successful join are inert.
var dispatch = map[State]map[string]eventHandler{
	StateAuthenticated: {
		EventJoin: (*Coordinator).handleJoin,
	},
	StateJoined: {
		EventStateUpdate:  (*Coordinator).handleStateUpdate,
		EventSessionEnd:   (*Coordinator).handleSessionEnd,
		EventPresencePing: (*Coordinator).handlePresencePing,
	},
}

// Connect registers an authenticated connection with the coordinator and
// places it in the lobby until it joins a session.
func (c *Coordinator) Connect(connID string, claims *sessiontoken.Claims) {
	session := &Session{
		ID: connID,
		Identity: Identity{
			UserID:      claims.UserID,
			DisplayName: claims.DisplayName,
		},
		TokenSlug: claims.Slug,
		state:     StateAuthenticated,
	}

	c.mu.Lock()
	c.sessions[connID] = session
	c.mu.Unlock()

	c.transport.JoinGroup(connID, LobbySlug)

	c.logger.Info().
		Str("conn_id", connID).
		Str("user_id", session.Identity.UserID).
		Str("token_slug", session.TokenSlug).
		Msg("Connection authenticated.")
}

// HandleEvent dispatches one inbound event for the connection. Events are
// delivered here in arrival order by the connection's read pump.
func (c *Coordinator) HandleEvent(connID, event string, data json.RawMessage) {
	session := c.session(connID)
	if session == nil {
		c.logger.Debug().Str("conn_id", connID).Str("event", event).Msg("Event for unknown connection dropped.")
		return
	}

	handler, ok := dispatch[session.state][event]
	if !ok {
		c.logger.Debug().
			Str("conn_id", connID).
			Str("event", event).
			Stringer("state", session.state).
			Msg("Event not valid in current state, dropped.")
		return
	}

	handler(c, session, data)
}

// handleJoin processes a join request carrying the slug to join.
func (c *Coordinator) handleJoin(s *Session, data json.RawMessage) {
	var slug string
	if err := json.Unmarshal(data, &slug); err != nil || slug == "" {
		c.logger.Debug().Str("conn_id", s.ID).Msg("Join with invalid slug ignored.")
		return
	}

	if s.TokenSlug != "" && slug != s.TokenSlug {
		c.logger.Warn().
			Str("conn_id", s.ID).
			Str("requested_slug", slug).
			Str("token_slug", s.TokenSlug).
			Msg("Join rejected: slug does not match token claim.")
		c.transport.Send(s.ID, EventError, ErrorPayload{Message: "Slug mismatch"})
		return
	}

	s.state = StateJoined
	s.slug = slug
	s.key = ParticipantKey(s.Identity)

	c.transport.JoinGroup(s.ID, slug)

	c.transport.Broadcast(slug, EventUserJoin, UserJoinPayload{
		ID:   s.ID,
		User: s.Identity,
		Key:  s.key,
	}, "")

	go c.notifier.NotifyPresence(context.Background(), slug, s.Identity, StatusActive)

	c.logger.Info().
		Str("conn_id", s.ID).
		Str("slug", slug).
		Str("key", s.key).
		Msg("Connection joined session.")
}

// handlePresencePing refreshes the participant's liveness, both in the
// external record store and for the other participants.
func (c *Coordinator) handlePresencePing(s *Session, _ json.RawMessage) {
	if !c.limiter.Allow(s.ID, EventPresencePing, c.presencePingInterval) {
		return
	}

	go c.notifier.NotifyPresence(context.Background(), s.slug, s.Identity, StatusActive)

	c.transport.Broadcast(s.slug, EventUserPresence, UserPresencePayload{
		Key:      s.key,
		Status:   StatusActive,
		LastSeen: c.now().Unix(),
	}, "")
}

// stateUpdateRequest is the inbound state:update payload. Slug is declared
// loosely so a non-string value fails validation instead of decoding.
type stateUpdateRequest struct {
	Slug any             `json:"slug"`
	Diff json.RawMessage `json:"diff"`
}

// handleStateUpdate relays a state diff to everyone else in the session.
func (c *Coordinator) handleStateUpdate(s *Session, data json.RawMessage) {
	if !c.limiter.Allow(s.ID, EventStateUpdate, c.stateUpdateInterval) {
		return
	}

	var request stateUpdateRequest
	if err := json.Unmarshal(data, &request); err != nil {
		c.transport.Send(s.ID, EventError, ErrorPayload{Message: "Invalid state:update payload"})
		return
	}

	if _, ok := request.Slug.(string); !ok || !isJSONObject(request.Diff) {
		c.transport.Send(s.ID, EventError, ErrorPayload{Message: "Invalid state:update payload"})
		return
	}

	// The sender is excluded: it already has the diff it authored.
	c.transport.Broadcast(s.slug, EventStateUpdate, StateUpdatePayload{
		Diff: request.Diff,
		User: s.Identity,
	}, s.ID)
}

// handleSessionEnd announces that a participant ended the session. This is a
// notification only: downstream clients decide how to react, and the group is
// not torn down.
func (c *Coordinator) handleSessionEnd(s *Session, _ json.RawMessage) {
	c.transport.Broadcast(s.slug, EventSessionEnded, SessionEndedPayload{
		EndedBy: s.Identity,
	}, "")

	c.logger.Info().
		Str("conn_id", s.ID).
		Str("slug", s.slug).
		Msg("Session end announced.")
}

// HandleDisconnecting runs the pre-teardown phase of the disconnect sequence:
// the leave broadcast, then the presence-inactive call, then the leave call.
// The two external calls are awaited sequentially because the record store
// expects the inactive mark before the departure record; failures in either
// are absorbed by the notifier and do not block the other.
func (c *Coordinator) HandleDisconnecting(ctx context.Context, connID string) {
	session := c.session(connID)
	if session == nil {
		return
	}

	wasJoined := session.state == StateJoined
	session.state = StateDisconnecting

	if !wasJoined {
		return
	}

	c.transport.Broadcast(session.slug, EventUserLeave, UserLeavePayload{
		ID:   session.ID,
		User: session.Identity,
	}, session.ID)

	c.notifier.NotifyPresence(ctx, session.slug, session.Identity, StatusInactive)
	c.notifier.NotifyLeave(ctx, session.slug, session.Identity)
}

// HandleDisconnect finalizes a connection: membership, limiter entries, and
// session state are released. No further events are processed for the ID.
func (c *Coordinator) HandleDisconnect(connID string) {
	c.mu.Lock()
	session, ok := c.sessions[connID]
	if ok {
		delete(c.sessions, connID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	if session.slug != "" {
		c.transport.LeaveGroup(connID, session.slug)
	} else {
		c.transport.LeaveGroup(connID, LobbySlug)
	}

	c.limiter.Forget(connID)
	session.state = StateClosed

	c.logger.Info().
		Str("conn_id", connID).
		Str("user_id", session.Identity.UserID).
		Msg("Connection closed.")
}

// session looks up the live session for a connection ID.
func (c *Coordinator) session(connID string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[connID]
}

// isJSONObject reports whether raw holds a JSON object.
func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
