package websocket

import (
	"errors"
	"net"
	"strings"
	"time"

	"roomchat/internal/models"
	"roomchat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	welcomeText = "Welcome! Choose a username with /name <name>, or /register or /login. Use /join <room> to switch rooms."
)

// Client drives one connection: an unauthenticated phase, an active phase
// once a name is chosen, and teardown.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	session  *Session
	maxSize  int64
	admitted bool
	done     chan struct{}
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		session: hub.NewSession(uuid.NewString()),
		maxSize: hub.cfg.MaxMessageSize,
		done:    make(chan struct{}),
	}
}

func (c *Client) Session() *Session {
	return c.session
}

// Run serves the connection until it closes. The forwarder is always
// awaited before Run returns.
func (c *Client) Run() {
	if !c.hub.track(c) {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.conn.Close()
		return
	}
	defer c.hub.untrack(c)

	logger.Debug("Connection %s opened from %s", c.session.ID, c.conn.RemoteAddr())
	go c.WritePump()
	c.session.sendSystem(welcomeText)
	c.ReadPump()
}

func (c *Client) ReadPump() {
	defer func() {
		if c.admitted {
			c.hub.Leave(c.session)
		}
		c.session.outbox.Close()
		<-c.done
	}()

	if c.maxSize > 0 {
		c.conn.SetReadLimit(c.maxSize)
	}
	// Set read deadline and pong handler for connection health
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if msgType != websocket.TextMessage {
			continue
		}

		env := models.DecodeInbound(data)
		if !c.admitted {
			c.admitted = c.hub.HandleUnauthenticated(c.session, env)
			continue
		}
		if _, ok := c.hub.registry.Get(c.session.ID); !ok {
			// removed by a kick; the forwarder is closing the socket
			continue
		}
		c.hub.Dispatch(c.session, env)
	}
}

func (c *Client) handleReadError(err error) {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
		isExpectedCloseError(err) {
		logger.Debug("Connection %s closed: %v", c.session.ID, err)
		return
	}
	if errors.Is(err, websocket.ErrReadLimit) {
		logger.Warn("Connection %s sent an oversized frame", c.session.ID)
		return
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Info("Connection %s timed out", c.session.ID)
		return
	}
	logger.Warn("WebSocket error on %s: %v", c.session.ID, err)
}

func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}

// WritePump drains the outbox to the socket and pings the peer. It closes
// the socket when the outbox is closed and empty, or on any write error.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		close(c.done)
	}()

	for {
		select {
		case <-c.session.outbox.Ready():
			batch, closed := c.session.outbox.Drain()
			for _, msg := range batch {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					if !isExpectedCloseError(err) {
						logger.Error("Write error on %s: %v", c.session.ID, err)
					}
					return
				}
			}
			if closed {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
