package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jozu2/pianogod-server/internal/app/relay"
	"github.com/jozu2/pianogod-server/internal/pkg/errs"
)

func TestGetSessionNotFound(t *testing.T) {
	server, _ := newTestRelay(t)

	res, err := http.Get(server.URL + "/api/sessions/no-such-slug")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusNotFound, res.StatusCode)

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var body struct {
		Code int `json:"code"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, errs.ErrSessionNotFound, body.Code)
}

func TestGetSessionParticipants(t *testing.T) {
	server, _ := newTestRelay(t)

	token := mintToken(t, map[string]any{"slug": "s1", "user_id": "u1", "display_name": "Ann"})
	conn := dial(t, server, token)
	sendEvent(t, conn, relay.EventJoin, "s1")
	require.Equal(t, relay.EventUserJoin, readEvent(t, conn).Event)

	res, err := http.Get(server.URL + "/api/sessions/s1")
	require.NoError(t, err)
	defer res.Body.Close()

	require.Equal(t, http.StatusOK, res.StatusCode)

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	var body struct {
		Data struct {
			Slug         string              `json:"slug"`
			Participants []relay.Participant `json:"participants"`
			Count        int                 `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Equal(t, "s1", body.Data.Slug)
	require.Equal(t, 1, body.Data.Count)
	require.Equal(t, "u:u1", body.Data.Participants[0].Key)
}
