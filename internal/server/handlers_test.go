package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/whiteboard/internal/server"
)

func TestHealthHandler(t *testing.T) {
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		t.Run(method, func(t *testing.T) {
			req := httptest.NewRequest(method, "/", http.NoBody)
			rr := httptest.NewRecorder()

			server.HealthHandler(rr, req)

			require.Equal(t, http.StatusOK, rr.Code)
			require.Equal(t, "text/plain", rr.Header().Get("Content-Type"))
			require.Equal(t, "Whiteboard server is running!", rr.Body.String())
		})
	}
}

func TestWhiteboardEndpointRejectsNonWebSocketRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	endpoint := env.server.URL + env.cfg.WhiteboardPath()

	t.Run("POST", func(t *testing.T) {
		resp, err := http.Post(endpoint, "text/plain", strings.NewReader("test"))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})

	t.Run("GET without upgrade headers", func(t *testing.T) {
		resp := get(t, endpoint)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestWhiteboardEndpointHonoursBasePath(t *testing.T) {
	env := newTestEnv(t, func(cfg *server.Config) { cfg.BasePath = "/rooms/main" })
	require.True(t, strings.HasSuffix(env.wsURL(), "/rooms/main/whiteboard"))

	conn := env.dial(t)
	syncRoster(t, conn)
}

func TestWhiteboardEndpointChecksOrigin(t *testing.T) {
	env := newTestEnv(t, nil)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	t.Run("allowed origin", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "http://localhost:8080")
		conn, resp, err := dialer.Dial(env.wsURL(), header)
		require.NoError(t, err)
		_ = resp.Body.Close()
		_ = conn.Close()
	})

	t.Run("disallowed origin", func(t *testing.T) {
		header := http.Header{}
		header.Set("Origin", "http://evil.example")
		_, resp, err := dialer.Dial(env.wsURL(), header)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestStatsHandler(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t)
	register(t, conn, "alice")
	expectUsers(t, receive(t, conn), "alice")
	syncRoster(t, conn, "alice")

	resp := get(t, env.server.URL+env.cfg.StatsPath())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var stats server.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	require.Equal(t, server.Stats{Connections: 1, Users: []string{"alice"}, History: 0}, stats)
}

func TestTestPageHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := get(t, env.server.URL+"/test")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "whiteboard")
	require.Contains(t, string(body), "clear-history")
}
