package server_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/whiteboard/internal/server"
	"github.com/Tyrowin/whiteboard/pkg/protocol"
)

const readTimeout = 2 * time.Second

type testEnv struct {
	relay  *server.Relay
	server *httptest.Server
	cfg    *server.Config
}

// newTestEnv starts a relay behind an httptest server and tears both down
// when the test ends.
func newTestEnv(t *testing.T, customize func(cfg *server.Config)) *testEnv {
	t.Helper()
	cfg := server.NewConfig()
	if customize != nil {
		customize(cfg)
	}
	require.NoError(t, cfg.Validate())

	relay := server.NewRelay(cfg, logs.GetLoggerFromLevel(slog.LevelWarn))
	go relay.Run()
	testServer := httptest.NewServer(server.SetupRoutes(relay))

	t.Cleanup(func() {
		_ = relay.Shutdown(2 * time.Second)
		testServer.Close()
	})
	return &testEnv{relay: relay, server: testServer, cfg: cfg}
}

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.server.URL, "http") + e.cfg.WhiteboardPath()
}

func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial(e.wsURL(), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame protocol.Frame) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, protocol.MustEncode(frame)))
}

func sendRaw(t *testing.T, conn *websocket.Conn, messageType int, data []byte) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(messageType, data))
}

func receive(t *testing.T, conn *websocket.Conn) protocol.Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, messageType)
	return protocol.Decode(data)
}

// syncRoster proves nothing else is queued for conn: the relay answers a
// roster request in order, so the next frame must be that answer.
func syncRoster(t *testing.T, conn *websocket.Conn, users ...string) {
	t.Helper()
	send(t, conn, protocol.RequestUserList{})
	expectUsers(t, receive(t, conn), users...)
}

func expectUsers(t *testing.T, frame protocol.Frame, users ...string) {
	t.Helper()
	list, ok := frame.(protocol.UserList)
	require.True(t, ok, "expected user-list, got %#v", frame)
	require.ElementsMatch(t, users, list.Users)
}

func register(t *testing.T, conn *websocket.Conn, username string) {
	t.Helper()
	send(t, conn, protocol.Register{Username: username})
}

func closeNormally(conn *websocket.Conn) {
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
