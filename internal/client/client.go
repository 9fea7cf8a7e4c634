// Package client implements a thin whiteboard client: one persistent
// websocket connection that sends typed frames and hands every received frame
// to a Handler.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/whiteboard/pkg/protocol"
)

const (
	handshakeTimeout = 5 * time.Second
	writeWait        = 10 * time.Second
	closeGrace       = time.Second
)

// ErrNotConnected is returned when sending on a closed connection.
var ErrNotConnected = errors.New("whiteboard connection is not open")

//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=mocks/mock_handler.go -package=mocks

// Handler receives connection events. Methods are called from the client's
// read goroutine, one at a time. A Client delivers to the handler given to
// Dial and to any added later with Subscribe.
type Handler interface {
	OnOpen()
	OnFrame(frame protocol.Frame)
	OnClose(code int, reason string)
	OnError(err error)
}

// HandlerFuncs adapts optional callbacks to Handler. Nil callbacks are no-ops.
type HandlerFuncs struct {
	Open  func()
	Frame func(frame protocol.Frame)
	Close func(code int, reason string)
	Error func(err error)
}

func (h HandlerFuncs) OnOpen() {
	if h.Open != nil {
		h.Open()
	}
}

func (h HandlerFuncs) OnFrame(frame protocol.Frame) {
	if h.Frame != nil {
		h.Frame(frame)
	}
}

func (h HandlerFuncs) OnClose(code int, reason string) {
	if h.Close != nil {
		h.Close(code, reason)
	}
}

func (h HandlerFuncs) OnError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

// Client is an open whiteboard connection.
type Client struct {
	conn *websocket.Conn
	log  *slog.Logger

	handlersMu sync.Mutex
	handlers   []*subscription

	writeMu sync.Mutex
	closing atomic.Bool
	closed  atomic.Bool
	done    chan struct{}
}

// Dial connects to the whiteboard endpoint at url, calls handler.OnOpen and
// starts delivering received frames to handler.
func Dial(ctx context.Context, url string, handler Handler, log *slog.Logger) (*Client, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Client{
		conn:     conn,
		handlers: []*subscription{{handler: handler}},
		log:      log.With("url", url),
		done:     make(chan struct{}),
	}
	c.log.Debug("Connected to whiteboard")

	handler.OnOpen()
	go c.readLoop()
	return c, nil
}

type subscription struct {
	handler Handler
}

// Subscribe adds handler to the receivers of frame, close and error events
// and returns a function that removes it again. OnOpen is only delivered to
// the handler passed to Dial.
func (c *Client) Subscribe(handler Handler) (unsubscribe func()) {
	sub := &subscription{handler: handler}

	c.handlersMu.Lock()
	c.handlers = append(c.handlers, sub)
	c.handlersMu.Unlock()

	return func() {
		c.handlersMu.Lock()
		defer c.handlersMu.Unlock()
		c.handlers = slices.DeleteFunc(c.handlers, func(s *subscription) bool { return s == sub })
	}
}

// notify calls fn for every current handler in subscription order.
func (c *Client) notify(fn func(Handler)) {
	c.handlersMu.Lock()
	subs := slices.Clone(c.handlers)
	c.handlersMu.Unlock()

	for _, sub := range subs {
		fn(sub.handler)
	}
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.closed.Store(true)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.reportClose(err)
			return
		}

		frame := protocol.Decode(data)
		if invalid, ok := frame.(protocol.Invalid); ok {
			c.log.Warn("Received malformed frame", "error", invalid)
			c.notify(func(h Handler) { h.OnError(invalid) })
			continue
		}
		c.notify(func(h Handler) { h.OnFrame(frame) })
	}
}

func (c *Client) reportClose(err error) {
	var closeErr *websocket.CloseError
	switch {
	case errors.As(err, &closeErr):
		c.notify(func(h Handler) { h.OnClose(closeErr.Code, closeErr.Text) })
	case c.closing.Load():
		c.notify(func(h Handler) { h.OnClose(websocket.CloseNormalClosure, "") })
	default:
		c.log.Warn("Whiteboard connection error", "error", err)
		wrapped := fmt.Errorf("whiteboard connection error: %w", err)
		c.notify(func(h Handler) {
			h.OnError(wrapped)
			h.OnClose(websocket.CloseAbnormalClosure, err.Error())
		})
	}
}

// Send encodes and writes one frame.
func (c *Client) Send(frame protocol.Frame) error {
	if c.closed.Load() || c.closing.Load() {
		return ErrNotConnected
	}

	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// Register claims username on the server.
func (c *Client) Register(username string) error {
	return c.Send(protocol.Register{Username: username})
}

// SendText posts a chat message.
func (c *Client) SendText(text string) error {
	return c.Send(protocol.Message{Text: text})
}

// ClearHistory wipes the server-side message history.
func (c *Client) ClearHistory() error {
	return c.Send(protocol.ClearHistory{})
}

// RequestUserList asks the server for the current roster.
func (c *Client) RequestUserList() error {
	return c.Send(protocol.RequestUserList{})
}

// Done is closed once the read goroutine has stopped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close performs a close handshake and releases the connection.
func (c *Client) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		return nil
	}

	c.writeMu.Lock()
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		c.log.Debug("Error writing close message", "error", err)
	}

	select {
	case <-c.done:
	case <-time.After(closeGrace):
	}
	return c.conn.Close()
}
