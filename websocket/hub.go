package websocket

import (
	"context"
	"sync"
	"time"

	"visitguard/models"

	"github.com/sirupsen/logrus"
)

const (
	broadcastBufferSize = 256
	closeShareTimeout   = 5 * time.Second
	expiryCheckInterval = 30 * time.Second
)

// Hub fans session changes out to monitoring staff and to public link
// holders. All client and room bookkeeping happens on the Run goroutine.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Rooms: the monitoring room plus one room per visit with public viewers
	rooms map[string]*Room

	register   chan *Client
	unregister chan *Client
	broadcast  chan BroadcastMessage
	closeShare chan string

	// Hub statistics
	stats HubStats

	// Mutex for thread safety
	mutex sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc

	expiryTicker *time.Ticker
}

type BroadcastMessage struct {
	RoomID  string
	Message models.WSMessage
}

type HubStats struct {
	TotalConnections  int64
	ActiveConnections int
	MessagesSent      int64
	MessagesDropped   int64
	StartTime         time.Time
}

func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]*Room),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan BroadcastMessage, broadcastBufferSize),
		closeShare: make(chan string),
		stats: HubStats{
			StartTime: time.Now(),
		},
		ctx:          ctx,
		cancel:       cancel,
		expiryTicker: time.NewTicker(expiryCheckInterval),
	}
}

func (h *Hub) Run() {
	logrus.Info("WebSocket Hub starting...")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToRoom(message)

		case token := <-h.closeShare:
			h.closeShareClients(token)

		case <-h.expiryTicker.C:
			h.expireViewers(time.Now())

		case <-h.ctx.Done():
			logrus.Info("WebSocket Hub shutting down...")
			h.closeAll()
			return
		}
	}
}

// Register queues a client for registration.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister queues a client for removal. Removing an unknown client is a no-op.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// =================== BROADCASTER ===================

// BroadcastSessionUpdate sends the full change to monitoring staff and the
// narrowed live update to public viewers of the visit.
func (h *Hub) BroadcastSessionUpdate(messageType string, session *models.TrackingSession, event *models.TrackingEvent) {
	now := time.Now()

	h.enqueue(BroadcastMessage{
		RoomID: models.WSMonitoringRoom,
		Message: models.WSMessage{
			Type:    messageType,
			VisitID: session.VisitID,
			Data: models.WSSessionEvent{
				VisitID:   session.VisitID,
				Event:     event,
				Summary:   session.Summary(),
				Timestamp: now,
			},
			Timestamp: now,
		},
	})

	h.enqueue(BroadcastMessage{
		RoomID: VisitRoom(session.VisitID),
		Message: models.WSMessage{
			Type: models.WSTypeLiveUpdate,
			Data: models.PublicLiveUpdate{
				LastKnownLocation: session.LastKnownLocation,
				IsActive:          session.IsActive,
				PanicActive:       session.HasActivePanic(),
				Timestamp:         now,
			},
			Timestamp: now,
		},
	})
}

// CloseShareViewers disconnects every public viewer holding token.
func (h *Hub) CloseShareViewers(token string) {
	timer := time.NewTimer(closeShareTimeout)
	defer timer.Stop()

	select {
	case h.closeShare <- token:
	case <-h.ctx.Done():
	case <-timer.C:
		logrus.Warn("Timed out closing revoked share viewers")
	}
}

func (h *Hub) enqueue(message BroadcastMessage) {
	select {
	case h.broadcast <- message:
	case <-h.ctx.Done():
	default:
		h.mutex.Lock()
		h.stats.MessagesDropped++
		h.mutex.Unlock()
		logrus.Warnf("Broadcast queue full, dropping %s message for room %s", message.Message.Type, message.RoomID)
	}
}

// =================== RUN LOOP HANDLERS ===================

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true
	h.getOrCreateRoom(client.room).AddClient(client)
	h.stats.ActiveConnections++
	h.stats.TotalConnections++

	logrus.Infof("Client registered: %s in %s (Total: %d)", client.connectionID, client.room, h.stats.ActiveConnections)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.removeClient(client)
}

// removeClient must be called with the mutex held.
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	h.stats.ActiveConnections--

	if room, exists := h.rooms[client.room]; exists {
		room.RemoveClient(client)
		if room.IsEmpty() {
			delete(h.rooms, client.room)
		}
	}

	close(client.send)
	logrus.Infof("Client unregistered: %s (Total: %d)", client.connectionID, h.stats.ActiveConnections)
}

func (h *Hub) broadcastToRoom(message BroadcastMessage) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[message.RoomID]
	if !exists {
		return
	}

	now := time.Now()
	var stale []*Client
	for _, client := range room.Clients() {
		if client.isExpired(now) {
			client.trySend(linkClosedMessage("This tracking link has expired"))
			stale = append(stale, client)
			continue
		}
		if !client.trySend(message.Message) {
			h.stats.MessagesDropped++
			stale = append(stale, client)
			continue
		}
		h.stats.MessagesSent++
	}

	for _, client := range stale {
		h.removeClient(client)
	}
}

func (h *Hub) closeShareClients(token string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	closed := 0
	for client := range h.clients {
		if client.shareToken == "" || client.shareToken != token {
			continue
		}
		client.trySend(linkClosedMessage("This tracking link was revoked"))
		h.removeClient(client)
		closed++
	}

	if closed > 0 {
		logrus.Infof("Closed %d viewer(s) of a revoked share link", closed)
	}
}

func (h *Hub) expireViewers(now time.Time) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		if client.isExpired(now) {
			client.trySend(linkClosedMessage("This tracking link has expired"))
			h.removeClient(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		h.removeClient(client)
	}
}

// getOrCreateRoom must be called with the mutex held.
func (h *Hub) getOrCreateRoom(roomID string) *Room {
	room, exists := h.rooms[roomID]
	if !exists {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
	}
	return room
}

// =================== STATS ===================

func (h *Hub) GetStats() models.WSHubStats {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return models.WSHubStats{
		ActiveConnections: h.stats.ActiveConnections,
		TotalConnections:  h.stats.TotalConnections,
		ActiveRooms:       len(h.rooms),
		MessagesSent:      h.stats.MessagesSent,
		StartTime:         h.stats.StartTime,
	}
}

// ViewerCount returns how many public viewers follow a visit.
func (h *Hub) ViewerCount(visitID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if room, exists := h.rooms[VisitRoom(visitID)]; exists {
		return room.Len()
	}
	return 0
}

func (h *Hub) Shutdown() {
	h.expiryTicker.Stop()
	h.cancel()
}

func linkClosedMessage(reason string) models.WSMessage {
	return models.WSMessage{
		Type: models.WSTypeLinkClosed,
		Data: map[string]interface{}{
			"code":    models.WSErrorLinkRevoked,
			"message": reason,
		},
		Timestamp: time.Now(),
	}
}
