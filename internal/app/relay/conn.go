/*
Package relay contains the core logic of the session relay.

This file defines the Conn struct, representing one active WebSocket
connection. It manages the connection's communication loops (ReadPump and
WritePump), heartbeats, and the disconnect sequence handed to the coordinator.
*/
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jozu2/pianogod-server/internal/pkg/logx"
	"github.com/jozu2/pianogod-server/internal/pkg/sessiontoken"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// size of the buffered send queue per connection.
	sendQueueSize = 256
)

// Conn represents an active WebSocket connection and its authenticated identity.
type Conn struct {
	// id is the unique transport identifier for this connection.
	id string

	// hub owns group membership and message delivery for this connection.
	hub *Hub

	// coordinator processes this connection's inbound events.
	coordinator *Coordinator

	// underlying WebSocket connection object.
	ws *websocket.Conn

	// identity derived from the verified handshake token.
	identity Identity

	// a buffered channel used to queue messages waiting to be sent to the client.
	send chan []byte

	// structured logger with connection context.
	logger zerolog.Logger
}

// NewConn constructs a Conn for a connection whose handshake token produced
// the given verified claims.
func NewConn(hub *Hub, coordinator *Coordinator, wsConn *websocket.Conn, claims *sessiontoken.Claims) *Conn {
	id := uuid.NewString()

	connLogger := logx.Logger().With().
		Str("conn_id", id).
		Str("user_id", claims.UserID).
		Logger()

	return &Conn{
		id:          id,
		hub:         hub,
		coordinator: coordinator,
		ws:          wsConn,
		identity: Identity{
			UserID:      claims.UserID,
			DisplayName: claims.DisplayName,
		},
		send:   make(chan []byte, sendQueueSize),
		logger: connLogger,
	}
}

// ID returns the transport identifier of the connection.
func (c *Conn) ID() string {
	return c.id
}

// ReadPump reads events from the WebSocket connection in arrival order and
// hands them to the coordinator. It performs the disconnect sequence when the
// connection closes for any reason.
func (c *Conn) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.ws.SetReadLimit(maxMessageSize)

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundMessage(messageBytes)
	}
}

// processInboundMessage decodes one wire frame and dispatches it.
func (c *Conn) processInboundMessage(messageBytes []byte) {
	var envelope Envelope

	if err := json.Unmarshal(messageBytes, &envelope); err != nil {
		c.logger.Warn().Err(err).
			Bytes("message_bytes", messageBytes).
			Msg("Client sent invalid JSON")
		return
	}

	if envelope.Event == "" {
		c.logger.Warn().Msg("Client sent frame without event name")
		return
	}

	c.coordinator.HandleEvent(c.id, envelope.Event, envelope.Data)
}

// cleanupOnDisconnect runs the coordinator's disconnect sequence, removes the
// connection from the hub, and closes the socket. The pre-teardown phase is
// awaited so the leave broadcast and the external presence calls finish in
// order before membership is torn down.
func (c *Conn) cleanupOnDisconnect() {
	c.logger.Info().Msg("Connection cleanup starting.")

	c.coordinator.HandleDisconnecting(context.Background(), c.id)
	c.coordinator.HandleDisconnect(c.id)
	c.hub.Unregister(c.id)

	if err := c.ws.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// enqueue places a marshaled frame on the send queue, dropping it when the
// queue is full rather than blocking the caller.
func (c *Conn) enqueue(message []byte) {
	select {
	case c.send <- message:
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Connection send queue full, dropping message")
	}
}

// WritePump writes queued frames to the WebSocket connection and maintains
// the heartbeat ping.
func (c *Conn) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.ws.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame pulled from the send queue.
// Returns false when the WritePump loop should terminate.
func (c *Conn) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.ws.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends the periodic WebSocket Ping.
// Returns false when the WritePump loop should terminate.
func (c *Conn) writePingMessage() bool {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
