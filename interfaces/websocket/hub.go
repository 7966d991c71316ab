// Package websocket implements the realtime feed: a hub of
// organization-keyed rooms fanning device events out to every connected
// member of the organization.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Event is the wire envelope for room broadcasts.
type Event struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

type roomMessage struct {
	roomID  string
	payload []byte
}

// Hub maintains active connections grouped into organization rooms. One
// organization can have any number of connections; a connection belongs to
// exactly one room.
type Hub struct {
	rooms map[string]map[*Client]bool
	mu    sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewHub creates a new hub
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan roomMessage, 512),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
	}
}

// Run drives the hub's event loop until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client)
		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

// Stop shuts the hub down and closes every connection.
func (h *Hub) Stop() {
	h.cancel()
}

// Publish sends an event to every member of the organization room.
// Fire-and-forget: marshal failures and a full broadcast buffer drop the
// event with a log line, nothing more.
func (h *Hub) Publish(roomID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to encode broadcast payload",
			zap.String("roomID", roomID),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	envelope, err := json.Marshal(Event{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Error("Failed to encode broadcast envelope", zap.Error(err))
		return
	}

	select {
	case h.broadcast <- roomMessage{roomID: roomID, payload: envelope}:
	default:
		h.logger.Warn("Broadcast buffer full, dropping event",
			zap.String("roomID", roomID),
			zap.String("event", event),
		)
	}
}

// drop queues a client for removal, giving up once the hub has shut down
// (closeAll already tears every connection down in that case).
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// RoomSize returns the number of connections in a room.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rooms[client.roomID] == nil {
		h.rooms[client.roomID] = make(map[*Client]bool)
	}
	h.rooms[client.roomID][client] = true

	h.logger.Info("Client joined room",
		zap.String("roomID", client.roomID),
		zap.String("userID", client.userID),
		zap.Int("roomSize", len(h.rooms[client.roomID])),
	)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[client.roomID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.roomID)
	}

	h.logger.Info("Client left room",
		zap.String("roomID", client.roomID),
		zap.String("userID", client.userID),
		zap.Int("roomSize", len(clients)),
	)
}

func (h *Hub) fanOut(msg roomMessage) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[msg.roomID]))
	for client := range h.rooms[msg.roomID] {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- msg.payload:
		default:
			// Slow consumer; drop the connection rather than block the room.
			h.logger.Warn("Closing slow client",
				zap.String("roomID", client.roomID),
				zap.String("userID", client.userID),
			)
			go func(c *Client) {
				h.drop(c)
				c.conn.Close()
			}(client)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, clients := range h.rooms {
		for client := range clients {
			close(client.send)
			client.conn.Close()
		}
		delete(h.rooms, roomID)
	}
	h.logger.Info("All websocket connections closed")
}
