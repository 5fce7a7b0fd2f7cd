package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/jozu2/pianogod-server/internal/app/presence"
	"github.com/jozu2/pianogod-server/internal/app/relay"
	"github.com/jozu2/pianogod-server/internal/configs"
	"github.com/jozu2/pianogod-server/internal/pkg/sessiontoken"
)

const testSecret = "handler-test-secret"

func mintToken(t *testing.T, payload map[string]any) string {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	encoded := base64.RawURLEncoding.EncodeToString(raw)

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(encoded))

	return encoded + "." + hex.EncodeToString(mac.Sum(nil))
}

type appServerLog struct {
	mu    sync.Mutex
	paths []string
}

func (l *appServerLog) record(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paths = append(l.paths, path)
}

func (l *appServerLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.paths...)
}

func newTestRelay(t *testing.T) (*httptest.Server, *appServerLog) {
	t.Helper()

	calls := &appServerLog{}
	appServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.record(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(appServer.Close)

	cfg := &configs.AppConfig{
		Environment:          "development",
		Port:                 8080,
		SessionSecret:        testSecret,
		AppServerURL:         appServer.URL,
		AppServerTimeout:     time.Second,
		StateUpdateInterval:  200 * time.Millisecond,
		PresencePingInterval: 5 * time.Second,
		ConnectRate:          100,
		ConnectBurst:         100,
	}

	hub := relay.NewHub()
	notifier := presence.NewClient(cfg.AppServerURL, cfg.AppServerTimeout)
	coordinator := relay.NewCoordinator(hub, notifier, cfg.StateUpdateInterval, cfg.PresencePingInterval)

	router := Router(&AppDeps{
		Hub:         hub,
		Coordinator: coordinator,
		Verifier:    sessiontoken.NewVerifier(cfg.SessionSecret),
		Config:      cfg,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	t.Cleanup(hub.Shutdown)

	return server, calls
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token

	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if res != nil {
		res.Body.Close()
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) relay.Envelope {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var envelope relay.Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(relay.Envelope{Event: event, Data: raw}))
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	server, _ := newTestRelay(t)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestHandshakeRejectsBadSignature(t *testing.T) {
	server, _ := newTestRelay(t)

	token := mintToken(t, map[string]any{"slug": "s1", "user_id": "u1"})
	tampered := token[:len(token)-4] + "0000"

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + tampered

	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	defer res.Body.Close()
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestRelayEndToEnd(t *testing.T) {
	server, appCalls := newTestRelay(t)

	tokenA := mintToken(t, map[string]any{"slug": "s1", "user_id": "u1", "display_name": "Ann"})
	tokenB := mintToken(t, map[string]any{"slug": "s1", "user_id": "u2", "display_name": "Ben"})

	connA := dial(t, server, tokenA)
	sendEvent(t, connA, relay.EventJoin, "s1")

	// A sees its own join announcement.
	joinA := readEvent(t, connA)
	require.Equal(t, relay.EventUserJoin, joinA.Event)

	connB := dial(t, server, tokenB)
	sendEvent(t, connB, relay.EventJoin, "s1")

	// Both participants see B's join.
	joinB := readEvent(t, connB)
	require.Equal(t, relay.EventUserJoin, joinB.Event)

	var joinPayload relay.UserJoinPayload
	require.NoError(t, json.Unmarshal(joinB.Data, &joinPayload))
	require.Equal(t, "u:u2", joinPayload.Key)
	require.Equal(t, "Ben", joinPayload.User.DisplayName)

	seen := readEvent(t, connA)
	require.Equal(t, relay.EventUserJoin, seen.Event)

	// A relays a diff; B receives it attributed to A.
	sendEvent(t, connA, relay.EventStateUpdate, map[string]any{
		"slug": "s1",
		"diff": map[string]any{"x": 1},
	})

	update := readEvent(t, connB)
	require.Equal(t, relay.EventStateUpdate, update.Event)

	var updatePayload relay.StateUpdatePayload
	require.NoError(t, json.Unmarshal(update.Data, &updatePayload))
	require.JSONEq(t, `{"x":1}`, string(updatePayload.Diff))
	require.Equal(t, "u1", updatePayload.User.UserID)

	// A second rapid update is dropped by the 200ms throttle.
	sendEvent(t, connA, relay.EventStateUpdate, map[string]any{
		"slug": "s1",
		"diff": map[string]any{"x": 2},
	})

	// Session inspection sees both participants.
	res, err := http.Get(server.URL + "/api/sessions/s1")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	// The external store was told both users are active.
	require.Eventually(t, func() bool {
		active := 0
		for _, path := range appCalls.snapshot() {
			if path == "/collab/s1/presence" {
				active++
			}
		}
		return active >= 2
	}, 2*time.Second, 10*time.Millisecond)

	// No echo of A's own diff, and no relay of the throttled one.
	require.NoError(t, connA.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var envelope relay.Envelope
	require.Error(t, connA.ReadJSON(&envelope))
}

func TestDisconnectNotifiesSessionAndStore(t *testing.T) {
	server, appCalls := newTestRelay(t)

	tokenA := mintToken(t, map[string]any{"slug": "s1", "user_id": "u1", "display_name": "Ann"})
	tokenB := mintToken(t, map[string]any{"slug": "s1", "user_id": "u2", "display_name": "Ben"})

	connA := dial(t, server, tokenA)
	sendEvent(t, connA, relay.EventJoin, "s1")
	require.Equal(t, relay.EventUserJoin, readEvent(t, connA).Event)

	connB := dial(t, server, tokenB)
	sendEvent(t, connB, relay.EventJoin, "s1")
	require.Equal(t, relay.EventUserJoin, readEvent(t, connB).Event)
	require.Equal(t, relay.EventUserJoin, readEvent(t, connA).Event)

	require.NoError(t, connA.Close())

	// B observes the departure.
	leave := readEvent(t, connB)
	require.Equal(t, relay.EventUserLeave, leave.Event)

	var leavePayload relay.UserLeavePayload
	require.NoError(t, json.Unmarshal(leave.Data, &leavePayload))
	require.Equal(t, "u1", leavePayload.User.UserID)

	// The external store receives the leave record.
	require.Eventually(t, func() bool {
		for _, path := range appCalls.snapshot() {
			if path == "/collab/s1/leave" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
