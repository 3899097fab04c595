package websocket

import (
	"net/http"
	"time"

	"visitguard/models"
	"visitguard/utils"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 1024

	// Buffer size for client send channel
	sendBufferSize = 64
)

// Client is one websocket connection: a monitoring console or a public link
// holder. Clients only receive; anything they send is read and discarded.
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	// Buffered channel of outbound messages. Owned and closed by the hub.
	send chan models.WSMessage

	connectionID string
	room         string
	connectedAt  time.Time
	ipAddress    string
	userAgent    string

	// Monitoring staff
	userID string
	role   string

	// Public viewers
	shareToken string
	expiresAt  *time.Time

	rateLimiter *utils.TokenBucket
}

func newClient(conn *websocket.Conn, hub *Hub, r *http.Request, room string) *Client {
	return &Client{
		conn:         conn,
		hub:          hub,
		send:         make(chan models.WSMessage, sendBufferSize),
		connectionID: utils.GenerateUUID(),
		room:         room,
		connectedAt:  time.Now(),
		ipAddress:    getClientIP(r),
		userAgent:    r.UserAgent(),
		rateLimiter:  utils.NewTokenBucket(30, time.Minute),
	}
}

// NewMonitoringClient creates a staff connection subscribed to every session.
func NewMonitoringClient(conn *websocket.Conn, hub *Hub, r *http.Request, userID, role string) *Client {
	client := newClient(conn, hub, r, models.WSMonitoringRoom)
	client.userID = userID
	client.role = role
	return client
}

// NewPublicClient creates a link-holder connection bound to one visit until
// the share token expires or is revoked.
func NewPublicClient(conn *websocket.Conn, hub *Hub, r *http.Request, visitID, token string, expiresAt *time.Time) *Client {
	client := newClient(conn, hub, r, VisitRoom(visitID))
	client.shareToken = token
	client.expiresAt = expiresAt
	return client
}

// Start registers the client and runs its pumps.
func (c *Client) Start(initial ...models.WSMessage) {
	for _, message := range initial {
		c.send <- message
	}
	c.hub.Register(c)

	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.Errorf("WebSocket error for connection %s: %v", c.connectionID, err)
			}
			return
		}

		if !c.rateLimiter.Allow() {
			logrus.Warnf("Closing connection %s from %s: rate limit exceeded", c.connectionID, c.ipAddress)
			c.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, models.WSErrorRateLimit),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logrus.Errorf("Write error for connection %s: %v", c.connectionID, err)
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

// trySend queues a message without blocking. Only the hub calls it, while
// the client is registered.
func (c *Client) trySend(message models.WSMessage) bool {
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *Client) isExpired(now time.Time) bool {
	return c.expiresAt != nil && !now.Before(*c.expiresAt)
}
