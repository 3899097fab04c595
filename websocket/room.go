package websocket

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Room groups the clients that receive the same stream.
type Room struct {
	ID string

	clients map[*Client]bool
	mutex   sync.RWMutex

	createdAt time.Time
}

func NewRoom(id string) *Room {
	logrus.Debugf("Created new room: %s", id)
	return &Room{
		ID:        id,
		clients:   make(map[*Client]bool),
		createdAt: time.Now(),
	}
}

func (r *Room) AddClient(client *Client) {
	if client == nil {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.clients[client] = true
	logrus.Debugf("Client %s joined room %s (Total: %d)", client.connectionID, r.ID, len(r.clients))
}

func (r *Room) RemoveClient(client *Client) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.clients[client] {
		return
	}
	delete(r.clients, client)
	logrus.Debugf("Client %s left room %s (Remaining: %d)", client.connectionID, r.ID, len(r.clients))
}

// Clients returns a snapshot of the room members.
func (r *Room) Clients() []*Client {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

func (r *Room) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.clients)
}

func (r *Room) IsEmpty() bool {
	return r.Len() == 0
}
