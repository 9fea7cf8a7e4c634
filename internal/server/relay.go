// Package server coordinates client registration, frame dispatch, broadcast
// and connection cleanup for the whiteboard via the Relay type.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/whiteboard/pkg/protocol"
)

// Stats is a point-in-time view of the relay state.
type Stats struct {
	Connections int      `json:"connections"`
	Users       []string `json:"users"`
	History     int      `json:"history"`
}

// Relay owns the connected clients, the username roster and the message
// history. All frames are handled on the goroutine running Run, one at a time,
// so every state change and the broadcast that follows it is atomic.
type Relay struct {
	cfg     *Config
	log     *slog.Logger
	roster  *Roster
	history *History

	clients    map[*Client]bool
	inbound    chan inboundFrame
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewRelay creates a Relay ready to be started with Run.
func NewRelay(cfg *Config, log *slog.Logger) *Relay {
	if cfg == nil {
		cfg = NewConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		cfg:        cfg,
		log:        log,
		roster:     NewRoster(),
		history:    NewHistory(),
		clients:    make(map[*Client]bool),
		inbound:    make(chan inboundFrame),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Join hands a freshly upgraded client to the relay, which starts its pumps.
func (r *Relay) Join(client *Client) error {
	select {
	case r.register <- client:
		return nil
	case <-r.ctx.Done():
		return ErrRelayClosed
	}
}

func (r *Relay) leave(client *Client) {
	select {
	case r.unregister <- client:
	case <-r.ctx.Done():
	}
}

func (r *Relay) deliver(frame inboundFrame) bool {
	select {
	case r.inbound <- frame:
		return true
	case <-r.ctx.Done():
		return false
	}
}

// Run starts the relay's main event loop. It returns once Shutdown is called.
func (r *Relay) Run() {
	defer close(r.done)

	for {
		select {
		case <-r.ctx.Done():
			r.shutdownClients()
			return

		case client := <-r.register:
			if client == nil {
				r.log.Warn("Received nil client registration; skipping")
				continue
			}
			r.onConnect(client)

		case client := <-r.unregister:
			r.onDisconnect(client)

		case frame := <-r.inbound:
			r.onFrame(frame)
		}
	}
}

func (r *Relay) onConnect(client *Client) {
	r.mutex.Lock()
	r.clients[client] = true
	clientCount := len(r.clients)
	r.mutex.Unlock()
	client.log.Info("Client connected", "clients", clientCount)

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		client.writePump()
	}()
	go func() {
		defer r.wg.Done()
		client.readPump()
	}()
}

func (r *Relay) onDisconnect(client *Client) {
	r.mutex.Lock()
	if _, ok := r.clients[client]; !ok {
		r.mutex.Unlock()
		return
	}
	delete(r.clients, client)
	clientCount := len(r.clients)
	r.mutex.Unlock()
	close(client.send)

	username, registered := r.roster.Release(client.id)
	client.log.Info("Client disconnected", "clients", clientCount, "username", username)

	if registered {
		r.broadcast(protocol.UserList{Users: r.roster.Users()})
	}
}

func (r *Relay) onFrame(in inboundFrame) {
	client := in.client
	if !r.isConnected(client) {
		return
	}

	var frame protocol.Frame = protocol.Invalid{Reason: fmt.Errorf("%w: binary frame", protocol.ErrInvalidFrame)}
	if !in.binary {
		frame = protocol.Decode(in.payload)
	}

	err := r.dispatch(client, frame)
	switch {
	case err == nil:
	case errors.Is(err, protocol.ErrInvalidFrame):
		client.log.Debug("Rejected frame", "error", err)
		r.sendTo(client, protocol.Error{Message: protocol.InvalidFormatText})
	case errors.Is(err, ErrUsernameRejected):
		client.log.Debug("Rejected registration", "error", err)
		r.sendTo(client, protocol.Error{Message: protocol.UsernameRejectedText})
	case errors.Is(err, ErrNotRegistered):
		client.log.Debug("Ignored message from unregistered client")
	default:
		client.log.Error("Failed to handle frame", "error", err)
	}
}

func (r *Relay) dispatch(client *Client, frame protocol.Frame) error {
	switch f := frame.(type) {
	case protocol.Register:
		return r.handleRegister(client, f)
	case protocol.Message:
		return r.handleMessage(client, f)
	case protocol.ClearHistory:
		return r.handleClearHistory(client)
	case protocol.RequestUserList:
		return r.handleRequestUserList(client)
	case protocol.UserList, protocol.Error:
		return fmt.Errorf("%w: %q is sent by the server only", protocol.ErrInvalidFrame, f.Type())
	case protocol.Invalid:
		return f
	default:
		return fmt.Errorf("%w: unhandled frame %T", protocol.ErrInvalidFrame, frame)
	}
}

func (r *Relay) handleRegister(client *Client, frame protocol.Register) error {
	if err := validate.Struct(frame); err != nil {
		return fmt.Errorf("%w: %v", ErrUsernameRejected, err)
	}
	if err := r.roster.Claim(client.id, frame.Username); err != nil {
		return err
	}
	client.log.Info("Client registered", "username", frame.Username)

	r.broadcast(protocol.UserList{Users: r.roster.Users()})
	r.replayHistory(client)
	return nil
}

// replayHistory queues the whole history for client as one batch, so the
// replay is delivered in full or not at all regardless of its length.
func (r *Relay) replayHistory(client *Client) {
	messages := r.history.Snapshot()
	if len(messages) == 0 {
		return
	}

	batch := make([][]byte, 0, len(messages))
	for _, msg := range messages {
		payload, err := protocol.Encode(msg)
		if err != nil {
			client.log.Error("Failed to encode history message", "error", err)
			return
		}
		batch = append(batch, payload)
	}

	if r.safeSend(client, batch...) {
		client.log.Debug("Replayed history", "messages", len(batch))
	}
}

func (r *Relay) handleMessage(client *Client, frame protocol.Message) error {
	username, ok := r.roster.Username(client.id)
	if !ok {
		return ErrNotRegistered
	}

	msg := protocol.Message{Username: username, Text: frame.Text}
	r.history.Append(msg)
	r.broadcast(msg)
	return nil
}

func (r *Relay) handleClearHistory(client *Client) error {
	r.history.Clear()
	client.log.Info("Message history cleared")
	return nil
}

func (r *Relay) handleRequestUserList(client *Client) error {
	r.sendTo(client, protocol.UserList{Users: r.roster.Users()})
	return nil
}

func (r *Relay) isConnected(client *Client) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.clients[client]
}

// broadcast encodes frame once and queues it on every connected client.
func (r *Relay) broadcast(frame protocol.Frame) {
	payload, err := protocol.Encode(frame)
	if err != nil {
		r.log.Error("Failed to encode broadcast frame", "type", frame.Type(), "error", err)
		return
	}

	clients := r.getClientSnapshot()
	r.log.Debug("Broadcasting frame", "type", frame.Type(), "clients", len(clients))

	for _, client := range clients {
		r.safeSend(client, payload)
	}
}

func (r *Relay) sendTo(client *Client, frame protocol.Frame) {
	payload, err := protocol.Encode(frame)
	if err != nil {
		client.log.Error("Failed to encode frame", "type", frame.Type(), "error", err)
		return
	}
	r.safeSend(client, payload)
}

// safeSend queues payloads as one batch without blocking. A client whose
// buffer is full misses the batch; the connection itself is left alone.
func (r *Relay) safeSend(client *Client, payloads ...[]byte) bool {
	select {
	case client.send <- payloads:
		return true
	default:
		client.log.Warn("Send buffer full; dropping frames", "buffer", cap(client.send), "frames", len(payloads))
		return false
	}
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (r *Relay) getClientSnapshot() []*Client {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return lo.Keys(r.clients)
}

// Stats reports the current number of connections, the roster and the
// history length.
func (r *Relay) Stats() Stats {
	r.mutex.RLock()
	connections := len(r.clients)
	r.mutex.RUnlock()

	return Stats{
		Connections: connections,
		Users:       r.roster.Users(),
		History:     r.history.Len(),
	}
}

// shutdownClients closes every client's send channel and connection so that
// both pumps return.
func (r *Relay) shutdownClients() {
	r.log.Info("Shutting down all client connections...")

	r.mutex.Lock()
	clients := lo.Keys(r.clients)
	clear(r.clients)
	r.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				client.log.Error("Error closing client connection", "error", err)
			}
		}
	}

	r.log.Info("Closed client connections", "count", len(clients))
}

// Shutdown stops the event loop, closes every client connection and waits for
// the client goroutines to finish or for the timeout to elapse.
func (r *Relay) Shutdown(timeout time.Duration) error {
	r.log.Info("Initiating relay shutdown...")

	r.cancel()
	<-r.done

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("Relay shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		r.log.Warn("Relay shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
