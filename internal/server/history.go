package server

import (
	"slices"
	"sync"

	"github.com/Tyrowin/whiteboard/pkg/protocol"
)

// History is the ordered log of chat messages since the last clear.
type History struct {
	mu       sync.RWMutex
	messages []protocol.Message
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{}
}

// Append adds a message at the end of the log.
func (h *History) Append(msg protocol.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msg)
}

// Snapshot returns a copy of the log in append order.
func (h *History) Snapshot() []protocol.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.messages)
}

// Clear empties the log.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = nil
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}
