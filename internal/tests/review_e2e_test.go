//go:build review

package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushdeck/agent/internal/kv"
)

func TestReviewBypassEndpoint(t *testing.T) {
	ts := newTestAgent(t)
	client := ts.Server.Client()
	ctx := context.Background()

	t.Run("A_WrongCredentialsRejected", func(t *testing.T) {
		resp := postJSON(t, client, ts.Server.URL+"/auth/review_bypass", map[string]string{
			"email": reviewEmail, "code": "000000",
		})
		body := readBody(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "body: %s", body)

		_, err := ts.Store.Get(ctx, kv.KeyDeviceID)
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("B_StaticCredentialsLogIn", func(t *testing.T) {
		resp := postJSON(t, client, ts.Server.URL+"/auth/review_bypass", map[string]string{
			"email": reviewEmail, "code": reviewCode,
		})
		body := readBody(t, resp)
		require.Equal(t, http.StatusOK, resp.StatusCode, "body: %s", body)

		deviceID, err := ts.Store.Get(ctx, kv.KeyDeviceID)
		require.NoError(t, err)
		assert.Equal(t, "dev-abc", deviceID)

		registered := ts.Backend.Registered()
		require.Len(t, registered, 1)
		assert.Equal(t, [2]string{reviewEmail, "dev-abc"}, registered[0])
	})

	t.Run("C_StatusShowsLoggedIn", func(t *testing.T) {
		resp, err := client.Get(ts.Server.URL + "/auth/status")
		require.NoError(t, err)
		var status map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
		resp.Body.Close()
		assert.Equal(t, true, status["logged_in"])
	})
}
