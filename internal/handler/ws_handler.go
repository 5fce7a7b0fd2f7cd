/*
Package handler provides the HTTP handlers and routing setup for the relay.

This file contains the WebSocket handshake: per-IP connection throttling,
token verification, the protocol upgrade, and the start of the connection's
read and write pumps. A connection that fails verification is rejected before
the upgrade with the specific failure as the reason; it never enters the
event-processing state.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/jozu2/pianogod-server/internal/app/relay"
	"github.com/jozu2/pianogod-server/internal/pkg/errs"
	"github.com/jozu2/pianogod-server/internal/pkg/limiter"
	"github.com/jozu2/pianogod-server/internal/pkg/logx"
	"github.com/jozu2/pianogod-server/internal/pkg/resp"
	"github.com/jozu2/pianogod-server/internal/pkg/sessiontoken"
)

// HandleWebSocket creates an HTTP HandlerFunc that authenticates and upgrades
// relay connections.
func HandleWebSocket(upgrader websocket.Upgrader, connectLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !connectLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			logx.Warn("WebSocket connection rejected: Missing token")
			resp.RespondError(w, r, errs.NewError(errs.ErrTokenMissing))
			return
		}

		claims, err := deps.Verifier.Verify(token)
		if err != nil {
			logx.Warn("WebSocket connection rejected: Token verification failed", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(verificationErrCode(err)))
			return
		}

		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		conn := relay.NewConn(deps.Hub, deps.Coordinator, wsConn, claims)

		deps.Hub.Register(conn)
		deps.Coordinator.Connect(conn.ID(), claims)

		logx.Info("WebSocket connection established",
			"conn_id", conn.ID(),
			"user_id", claims.UserID,
			"token_slug", claims.Slug,
		)

		go conn.WritePump()

		conn.ReadPump()
	}
}

// verificationErrCode maps a token verification failure to its error code.
func verificationErrCode(err error) int {
	switch {
	case errors.Is(err, sessiontoken.ErrMalformedToken):
		return errs.ErrTokenMalformed
	case errors.Is(err, sessiontoken.ErrInvalidSignature):
		return errs.ErrTokenSignature
	case errors.Is(err, sessiontoken.ErrInvalidPayload):
		return errs.ErrTokenPayload
	case errors.Is(err, sessiontoken.ErrMissingSlug):
		return errs.ErrTokenMissingSlug
	case errors.Is(err, sessiontoken.ErrTokenExpired):
		return errs.ErrTokenExpired
	case errors.Is(err, sessiontoken.ErrUnauthenticated):
		return errs.ErrTokenUnauthenticated
	default:
		return errs.ErrUnknown
	}
}
