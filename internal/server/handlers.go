// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, relay stats, and the built-in test page.
package server

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/websocket"
)

func newUpgrader(relay *Relay) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(relay.cfg.AllowedOrigins, relay.log),
	}
}

// WebSocketHandler handles WebSocket upgrade requests on the whiteboard endpoint.
// It validates that the request uses the GET method, upgrades the HTTP connection
// to WebSocket, creates a new Client instance, and hands it to the relay.
func WebSocketHandler(relay *Relay) http.HandlerFunc {
	upgrader := newUpgrader(relay)

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			relay.log.Warn("WebSocket upgrade failed", "addr", r.RemoteAddr, "error", err)
			return
		}

		client := NewClient(conn, relay, r.RemoteAddr)

		// The relay launches the pump goroutines once the client is tracked.
		if err := relay.Join(client); err != nil {
			client.log.Warn("Rejecting connection", "error", err)
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			_ = conn.Close()
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Whiteboard server is running!")
}

// StatsHandler reports the relay's connection count, roster and history length as JSON.
func StatsHandler(relay *Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed.", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(relay.Stats()); err != nil {
			relay.log.Error("Error writing stats response", "error", err)
		}
	}
}

var testPage = template.Must(template.New("test").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Whiteboard Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; }
        #users { color: #555; }
        .error { color: #721c24; }
    </style>
</head>
<body>
    <h1>Whiteboard Chat Test</h1>
    <div id="users">Users: none</div>
    <div id="messages"></div>
    <input type="text" id="input" placeholder="Type a message...">
    <button onclick="send()">Send</button>
    <button onclick="ws.send(JSON.stringify({type: 'clear-history'}))">Clear history</button>

    <script>
        const path = {{.}};
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + path);
        const messages = document.getElementById('messages');

        function append(text, cls) {
            const el = document.createElement('div');
            el.textContent = text;
            if (cls) el.className = cls;
            messages.appendChild(el);
            messages.scrollTop = messages.scrollHeight;
        }

        function register() {
            const username = prompt('Username');
            ws.send(JSON.stringify({type: 'register', username: username || ''}));
        }

        function send() {
            const input = document.getElementById('input');
            if (input.value) {
                ws.send(JSON.stringify({type: 'message', text: input.value}));
                input.value = '';
            }
        }

        ws.onopen = register;
        ws.onmessage = (event) => {
            const frame = JSON.parse(event.data);
            if (frame.type === 'message') append(frame.username + ': ' + frame.text);
            if (frame.type === 'user-list') document.getElementById('users').textContent = 'Users: ' + frame.users.join(', ');
            if (frame.type === 'error') { append(frame.message, 'error'); if (frame.message.startsWith('Username')) register(); }
        };
        ws.onclose = () => append('Connection closed');
    </script>
</body>
</html>`))

// TestPageHandler serves an HTML page that acts as a minimal browser client
// for the whiteboard endpoint at wsPath.
func TestPageHandler(wsPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if err := testPage.Execute(w, wsPath); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
