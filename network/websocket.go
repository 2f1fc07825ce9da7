package network

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// WSChannel is a Channel over a websocket connection. Only text frames are
// delivered to listeners.
type WSChannel struct {
	listeners
	mu     sync.Mutex
	ws     *websocket.Conn
	logger *slog.Logger
	done   chan struct{}
	err    error
}

// WSOption configures a WSChannel.
type WSOption func(*WSChannel)

// WithWSLogger sets the logger used for read errors.
func WithWSLogger(l *slog.Logger) WSOption {
	return func(c *WSChannel) {
		c.logger = l
	}
}

// WithWSListener registers l before the read loop starts, so no early frame
// is missed.
func WithWSListener(l Listener) WSOption {
	return func(c *WSChannel) {
		c.add(l)
	}
}

// NewWSChannel wraps an established connection and starts its read loop.
func NewWSChannel(ws *websocket.Conn, opts ...WSOption) *WSChannel {
	c := &WSChannel{
		ws:     ws,
		logger: slog.Default().With("component", "ws"),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.readLoop()
	return c
}

// DialWS opens a websocket to url.
func DialWS(ctx context.Context, url string, header http.Header, opts ...WSOption) (*WSChannel, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	return NewWSChannel(ws, opts...), nil
}

// Upgrader accepts websocket connections from any origin.
var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// AcceptWS upgrades an HTTP request to a WSChannel.
func AcceptWS(w http.ResponseWriter, r *http.Request, opts ...WSOption) (*WSChannel, error) {
	ws, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewWSChannel(ws, opts...), nil
}

func (c *WSChannel) readLoop() {
	defer close(c.done)
	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read stopped", "err", err)
			}
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.dispatch(string(data))
	}
}

func (c *WSChannel) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return ErrClosed
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *WSChannel) AddMessageListener(l Listener) ListenerID {
	return c.add(l)
}

func (c *WSChannel) RemoveMessageListener(id ListenerID) {
	c.remove(id)
}

// Done is closed when the read loop stops.
func (c *WSChannel) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and closes the connection.
func (c *WSChannel) Close() error {
	c.mu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.mu.Unlock()
	return c.ws.Close()
}
