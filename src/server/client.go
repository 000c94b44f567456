package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"mt5-gateway/src/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------
// Client Structure
// -----------------------------------------------------------------------------

// Client is one realtime socket. send is never closed; quit signals the
// write pump to stop.
type Client struct {
	id     string
	userID string
	hub    *Hub
	conn   *websocket.Conn
	send   chan models.MOutboundMessage

	quit      chan struct{}
	closeOnce sync.Once
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// enqueue never blocks. It reports false when the socket is closing or
// its queue is full.
func (c *Client) enqueue(msg models.MOutboundMessage) bool {
	select {
	case <-c.quit:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func errorMessage(message string) models.MOutboundMessage {
	return models.MOutboundMessage{Type: models.MsgError, Message: message, Timestamp: timestamp()}
}

// -----------------------------------------------------------------------------
// Connection lifecycle
// -----------------------------------------------------------------------------

// Serve takes ownership of an upgraded connection.
func (h *Hub) Serve(conn *websocket.Conn) {
	for {
		n := h.connections.Load()
		if h.opts.MaxConnections > 0 && n >= int64(h.opts.MaxConnections) {
			h.logger.Warning("rejecting realtime connection from %s: limit of %d reached", conn.RemoteAddr(), h.opts.MaxConnections)
			writeDirect(conn, errorMessage("too many connections"))
			conn.Close()
			return
		}
		if h.connections.CompareAndSwap(n, n+1) {
			break
		}
	}

	go h.serve(conn)
}

func (h *Hub) serve(conn *websocket.Conn) {
	defer h.connections.Add(-1)

	c := &Client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan models.MOutboundMessage, h.opts.SendQueue),
		quit: make(chan struct{}),
	}

	userID, err := c.authenticate()
	if err != nil {
		h.logger.Info("realtime client %s from %s rejected: %v", c.id, conn.RemoteAddr(), err)
		writeDirect(conn, errorMessage(err.Error()))
		conn.Close()
		return
	}
	c.userID = userID

	if !post(h, h.register, c) {
		conn.Close()
		return
	}
	c.enqueue(models.MOutboundMessage{Type: models.MsgAuthSuccess, UserID: userID, Timestamp: timestamp()})

	go c.writePump()
	c.readPump()
}

// authenticate expects an auth message first, within the auth timeout.
func (c *Client) authenticate() (string, error) {
	timeout := c.hub.opts.AuthTimeout
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(timeout))

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", errors.New("authentication timeout")
		}
		return "", errors.New("authentication required")
	}

	var msg models.MInboundMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != models.MsgAuth {
		return "", errors.New("authentication required")
	}
	token := strings.TrimSpace(msg.Token)
	if token == "" {
		return "", errors.New("token is required")
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, timeout)
	defer cancel()
	user, err := c.hub.identity.Verify(ctx, token)
	if err != nil {
		c.hub.logger.Debug("realtime token rejected: %v", err)
		return "", errors.New("invalid token")
	}
	return user.UserID, nil
}

func writeDirect(conn *websocket.Conn, msg models.MOutboundMessage) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteJSON(msg)
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *Client) readPump() {
	defer func() {
		if !post(c.hub, c.hub.unregister, c) {
			c.close()
		}
		c.conn.Close()
	}()

	pongWait := c.hub.opts.PingInterval * 10 / 9
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Info("realtime client %s read error: %v", c.id, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.handle(data) {
			return
		}
	}
}

// handle answers one inbound message. It returns false when the socket
// should be dropped.
func (c *Client) handle(data []byte) bool {
	var msg models.MInboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return c.enqueue(errorMessage("invalid message format"))
	}

	switch msg.Type {
	case models.MsgPing:
		return c.enqueue(models.MOutboundMessage{Type: models.MsgPong, Timestamp: timestamp()})

	case models.MsgSubscribeMarketData, models.MsgUnsubscribeMarketData:
		symbol := strings.TrimSpace(msg.Symbol)
		if symbol == "" {
			return c.enqueue(errorMessage("symbol is required"))
		}
		ch := c.hub.subscribe
		if msg.Type == models.MsgUnsubscribeMarketData {
			ch = c.hub.unsubscribe
		}
		return post(c.hub, ch, subscription{client: c, symbol: symbol})

	case models.MsgAuth:
		return c.enqueue(errorMessage("already authenticated"))

	default:
		return c.enqueue(errorMessage("unknown message type: " + msg.Type))
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.hub.logger.Info("realtime client %s write error: %v", c.id, err)
				return
			}

		case <-c.quit:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
