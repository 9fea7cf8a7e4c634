// Package server implements the whiteboard chat relay: the websocket endpoint,
// the Relay that owns the roster and message history, and the HTTP plumbing
// around them.
//
// The implementation is organized into specialized files for configuration,
// relay state, clients, routing, and HTTP handlers.
package server
