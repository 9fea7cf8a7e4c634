// Package server wires HTTP handlers into a ServeMux for the whiteboard
// relay via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// It sets up handlers for health check, the whiteboard WebSocket endpoint,
// the stats snapshot and the test page.
func SetupRoutes(relay *Relay) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.Handle(relay.cfg.WhiteboardPath(), WebSocketHandler(relay))
	mux.Handle(relay.cfg.StatsPath(), StatsHandler(relay))
	mux.Handle("/test", TestPageHandler(relay.cfg.WhiteboardPath()))
	return mux
}
