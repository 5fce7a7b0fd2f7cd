/*
Package presence forwards presence and departure records to the external
application server, the system of record for who is active in each session.

All calls are best-effort: network failures and non-2xx responses are logged
and swallowed, never retried, and never propagated to the real-time path.
*/
package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/jozu2/pianogod-server/internal/app/relay"
	"github.com/jozu2/pianogod-server/internal/pkg/logx"
)

// Client posts presence records to the application server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient constructs a Client for the application server at baseURL.
// The timeout bounds each call end to end.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logx.Logger().With().Str("component", "presence").Logger(),
	}
}

// presenceRecord is the body of POST /collab/{slug}/presence.
type presenceRecord struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Status      string `json:"status"`
}

// leaveRecord is the body of POST /collab/{slug}/leave.
type leaveRecord struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// NotifyPresence records the user's status ("active" or "inactive") for the slug.
func (c *Client) NotifyPresence(ctx context.Context, slug string, user relay.Identity, status string) {
	c.post(ctx, slug, "presence", presenceRecord{
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
		Status:      status,
	})
}

// NotifyLeave records the user's departure from the slug.
func (c *Client) NotifyLeave(ctx context.Context, slug string, user relay.Identity) {
	c.post(ctx, slug, "leave", leaveRecord{
		UserID:      user.UserID,
		DisplayName: user.DisplayName,
	})
}

// post issues one fire-and-forget JSON POST to /collab/{slug}/{action}.
func (c *Client) post(ctx context.Context, slug, action string, body any) {
	endpoint := fmt.Sprintf("%s/collab/%s/%s", c.baseURL, url.PathEscape(slug), action)

	payload, err := json.Marshal(body)
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Error marshaling presence record.")
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("Error building presence request.")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Presence call failed.")
		return
	}
	defer res.Body.Close()

	io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.logger.Warn().
			Int("status", res.StatusCode).
			Str("endpoint", endpoint).
			Msg("Presence call answered with non-2xx status.")
	}
}
