package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pizzachallenge/internal/models"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Heartbeat interval for version checks. A client that missed a CHANGE
	// frame still sees the version move and re-fetches.
	versionHeartbeatInterval = 2 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 256
)

// ChangeSource feeds the hub with change events and collection versions
type ChangeSource interface {
	Subscribe(ctx context.Context) (<-chan models.ChangeEvent, func() error, error)
	Versions(ctx context.Context) (map[models.Collection]int64, error)
}

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu          sync.RWMutex
	collections map[models.Collection]bool
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	source ChangeSource

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Last known version per collection for change detection
	lastVersions map[models.Collection]int64

	heartbeat time.Duration

	// done is closed when Run returns
	done     chan struct{}
	doneOnce sync.Once
}

// NewHub creates a new WebSocket hub
func NewHub(source ChangeSource) *Hub {
	return &Hub{
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		clients:      make(map[*Client]bool),
		source:       source,
		lastVersions: make(map[models.Collection]int64),
		heartbeat:    versionHeartbeatInterval,
		done:         make(chan struct{}),
	}
}

// Run starts the WebSocket hub
func (h *Hub) Run(ctx context.Context) {
	events, closeEvents, err := h.source.Subscribe(ctx)
	if err != nil {
		zap.L().Error("hub could not subscribe to change events, relying on version heartbeat", zap.Error(err))
	} else {
		defer func() {
			if err := closeEvents(); err != nil {
				zap.L().Warn("failed to close change subscription", zap.Error(err))
			}
		}()
	}

	if versions, err := h.source.Versions(ctx); err == nil {
		h.mu.Lock()
		h.lastVersions = versions
		h.mu.Unlock()
	}

	defer h.doneOnce.Do(func() { close(h.done) })

	zap.L().Info("websocket hub started")

	versionTicker := time.NewTicker(h.heartbeat)
	defer versionTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			zap.L().Debug("websocket client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			zap.L().Debug("websocket client disconnected", zap.Int("total", total))

		case event, ok := <-events:
			if !ok {
				zap.L().Warn("change event stream closed, relying on version heartbeat")
				events = nil
				continue
			}
			h.broadcastChange(event)

		case <-versionTicker.C:
			h.checkAndBroadcastVersions(ctx)

		case <-ctx.Done():
			zap.L().Info("websocket hub shutting down")
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return
		}
	}
}

// broadcastChange sends a CHANGE frame to every client watching the collection
func (h *Hub) broadcastChange(event models.ChangeEvent) {
	h.mu.Lock()
	if event.Version > h.lastVersions[event.Collection] {
		h.lastVersions[event.Collection] = event.Version
	}
	h.mu.Unlock()

	h.broadcast(event.Collection, models.PushMessage{
		Type:       models.MessageChange,
		Collection: event.Collection,
		Kind:       event.Kind,
		Row:        event.Row,
		Version:    event.Version,
	})
}

// checkAndBroadcastVersions broadcasts every collection whose version moved
// without a CHANGE frame having been seen for it
func (h *Hub) checkAndBroadcastVersions(ctx context.Context) {
	versions, err := h.source.Versions(ctx)
	if err != nil {
		zap.L().Warn("failed to get collection versions", zap.Error(err))
		return
	}

	for collection, version := range versions {
		h.mu.Lock()
		changed := version != h.lastVersions[collection]
		h.lastVersions[collection] = version
		h.mu.Unlock()

		if changed {
			h.broadcast(collection, models.PushMessage{
				Type:       models.MessageVersion,
				Collection: collection,
				Version:    version,
			})
		}
	}
}

func (h *Hub) broadcast(collection models.Collection, msg models.PushMessage) {
	message, err := json.Marshal(msg)
	if err != nil {
		zap.L().Error("failed to marshal push message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if !client.watches(collection) {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, skip this client
			zap.L().Warn("websocket client send buffer full, skipping",
				zap.String("collection", string(collection)),
			)
		}
	}
}

// version returns the last known version of a collection
func (h *Hub) version(collection models.Collection) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastVersions[collection]
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *Client) watches(collection models.Collection) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collections[collection]
}

// handle applies one client frame and returns the reply to queue
func (c *Client) handle(raw []byte) models.PushMessage {
	var msg models.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.PushMessage{Type: models.MessageError, Error: "malformed message"}
	}
	if !msg.Collection.Valid() {
		return models.PushMessage{Type: models.MessageError, Error: "unknown collection " + string(msg.Collection)}
	}

	switch msg.Action {
	case models.ActionSubscribe:
		c.mu.Lock()
		c.collections[msg.Collection] = true
		c.mu.Unlock()
		return models.PushMessage{
			Type:       models.MessageSubscribed,
			Collection: msg.Collection,
			Version:    c.hub.version(msg.Collection),
		}
	case models.ActionUnsubscribe:
		c.mu.Lock()
		delete(c.collections, msg.Collection)
		c.mu.Unlock()
		return models.PushMessage{Type: models.MessageUnsubscribed, Collection: msg.Collection}
	default:
		return models.PushMessage{Type: models.MessageError, Error: "unknown action " + msg.Action}
	}
}

// queue hands a reply to the write pump unless the hub already closed it
func (c *Client) queue(msg models.PushMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// readPump pumps subscription requests from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.L().Debug("websocket unexpected close", zap.Error(err))
			}
			break
		}
		c.queue(c.handle(raw))
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			// Keep draining so the hub never blocks on this client
			for range c.send {
			}
			return
		}
	}
	// The hub closed the channel
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWS handles WebSocket requests from clients
func ServeWS(hub *Hub, conn *websocket.Conn) {
	client := &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		collections: make(map[models.Collection]bool),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		conn.Close()
		return
	}

	written := make(chan struct{})
	go func() {
		defer close(written)
		client.writePump()
	}()

	// Run read pump in current goroutine (blocks until disconnect)
	client.readPump()

	// The connection is released when this handler returns
	<-written
}
