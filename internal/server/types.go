// Package server defines shared payload types and utility helpers that
// are reused across client and relay logic.
package server

import "strings"

// inboundFrame is one payload read from a client, queued for the relay loop.
type inboundFrame struct {
	client  *Client
	payload []byte
	binary  bool
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
