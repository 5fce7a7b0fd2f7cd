/*
Package relay contains the core logic of the session relay.

This file defines the Hub, the single-process realization of the transport's
group primitive. It owns every live connection, the slug-named broadcast
groups, and the lobby holding authenticated connections that have not yet
joined a session. Membership mutation and broadcast share one lock so a
broadcast issued right after a join reaches the newly joined connection.
*/
package relay

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jozu2/pianogod-server/internal/pkg/logx"
)

// LobbySlug names the holding group for connections that have not joined a session.
const LobbySlug = "lobby"

// Transport is the capability set the coordinator consumes: directed sends,
// group broadcasts with optional sender exclusion, and group membership.
type Transport interface {
	Send(connID, event string, data any)
	Broadcast(slug, event string, data any, excludeConnID string)
	JoinGroup(connID, slug string)
	LeaveGroup(connID, slug string)
}

// Participant is a snapshot entry of a session's current membership.
type Participant struct {
	Key  string   `json:"key"`
	User Identity `json:"user"`
}

// Hub tracks live connections and their slug groups.
type Hub struct {
	// mu protects conns and groups. Broadcasts hold it while queueing so
	// membership changes are never interleaved with a fan-out.
	mu sync.RWMutex

	// conns maps connection ID to the live connection.
	conns map[string]*Conn

	// groups maps slug to the set of member connections, keyed by connection ID.
	groups map[string]map[string]*Conn

	logger zerolog.Logger
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[string]*Conn),
		groups: make(map[string]map[string]*Conn),
		logger: logx.Logger().With().Str("component", "hub").Logger(),
	}
}

// ParticipantKey derives the stable participant key for an identity. It is
// independent of the transient connection ID, so the same logical user is
// recognizable across reconnects.
func ParticipantKey(user Identity) string {
	return "u:" + user.UserID
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.id] = c

	h.logger.Info().
		Str("conn_id", c.id).
		Str("user_id", c.identity.UserID).
		Int("total_conns", len(h.conns)).
		Msg("Connection registered.")
}

// Unregister removes a connection from the hub and every group, then closes
// its send queue so the write pump terminates.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}

	delete(h.conns, connID)
	for slug, members := range h.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.groups, slug)
		}
	}

	select {
	case <-c.send:
	default:
		close(c.send)
	}

	h.logger.Info().
		Str("conn_id", connID).
		Int("total_conns", len(h.conns)).
		Msg("Connection unregistered.")
}

// JoinGroup moves a connection out of the lobby and into the group named by slug.
func (h *Hub) JoinGroup(connID, slug string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.conns[connID]
	if !ok {
		h.logger.Warn().Str("conn_id", connID).Str("slug", slug).Msg("JoinGroup for unknown connection.")
		return
	}

	if lobby, ok := h.groups[LobbySlug]; ok {
		delete(lobby, connID)
		if len(lobby) == 0 {
			delete(h.groups, LobbySlug)
		}
	}

	members, ok := h.groups[slug]
	if !ok {
		members = make(map[string]*Conn)
		h.groups[slug] = members
	}
	members[connID] = c

	h.logger.Info().
		Str("conn_id", connID).
		Str("slug", slug).
		Int("group_size", len(members)).
		Msg("Connection joined group.")
}

// LeaveGroup removes a connection from the group named by slug.
func (h *Hub) LeaveGroup(connID, slug string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.groups[slug]
	if !ok {
		return
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(h.groups, slug)
	}
}

// Send queues an event for a single connection.
func (h *Hub) Send(connID, event string, data any) {
	message, err := encodeEnvelope(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("Error marshaling directed event.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[connID]
	if !ok {
		return
	}

	c.enqueue(message)
}

// Broadcast queues an event for every member of the slug's group, optionally
// excluding one connection (the sender of the event being relayed).
func (h *Hub) Broadcast(slug, event string, data any, excludeConnID string) {
	message, err := encodeEnvelope(event, data)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Str("slug", slug).Msg("Error marshaling broadcast.")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, c := range h.groups[slug] {
		if connID == excludeConnID {
			continue
		}
		c.enqueue(message)
	}
}

// Participants returns a membership snapshot for the slug, or nil when the
// group does not exist.
func (h *Hub) Participants(slug string) []Participant {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.groups[slug]
	if !ok {
		return nil
	}

	participants := make([]Participant, 0, len(members))
	for _, c := range members {
		participants = append(participants, Participant{
			Key:  ParticipantKey(c.identity),
			User: c.identity,
		})
	}

	return participants
}

// Shutdown closes every live connection's send queue. Read pumps observe the
// closing sockets and run their normal disconnect sequence.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for connID, c := range h.conns {
		select {
		case <-c.send:
		default:
			close(c.send)
		}
		delete(h.conns, connID)
	}
	h.groups = make(map[string]map[string]*Conn)

	h.logger.Info().Msg("Hub shutdown complete.")
}

// encodeEnvelope marshals an event and its payload into the wire frame.
func encodeEnvelope(event string, data any) ([]byte, error) {
	envelope := Envelope{Event: event}

	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		envelope.Data = raw
	}

	return json.Marshal(envelope)
}
