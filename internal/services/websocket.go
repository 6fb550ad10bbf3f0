package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for development
	},
}

// Client represents a WebSocket client
type Client struct {
	UserID uint
	Role   string
	Conn   *websocket.Conn
	Send   chan []byte
	Hub    *Hub
}

// Hub maintains the set of active clients on this server instance. Cross
// instance delivery goes through the Redis broadcast channels; the hub only
// knows about locally connected sockets.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	mutex      sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte),
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Printf("Client %d connected (%s)", client.UserID, client.Role)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mutex.Unlock()
			log.Printf("Client %d disconnected", client.UserID)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					log.Printf("Warning: could not send to client %d (channel full)", client.UserID)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// Event is the wire format for everything the hub delivers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// PushToUser delivers an event to every local connection of the user.
// Returns an error when the user has no connection on this instance so the
// caller can log the miss; other replicas may still reach them.
func (h *Hub) PushToUser(userID uint, event string, data interface{}) error {
	message, err := json.Marshal(Event{Type: event, Data: data})
	if err != nil {
		return err
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	delivered := false
	for client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- message:
				delivered = true
			default:
			}
		}
	}
	if !delivered {
		return fmt.Errorf("no local websocket session for user %d", userID)
	}
	return nil
}

// PushToRole sends an event to all connected users holding the given role.
func (h *Hub) PushToRole(role, event string, data interface{}) {
	message, err := json.Marshal(Event{Type: event, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.clients {
		if client.Role == role {
			select {
			case client.Send <- message:
			default:
				log.Printf("Warning: could not send to client %d (channel full)", client.UserID)
			}
		}
	}
}

// PushToAll broadcasts an event to every connected client.
func (h *Hub) PushToAll(event string, data interface{}) {
	message, err := json.Marshal(Event{Type: event, Data: data})
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return
	}
	h.broadcast <- message
}

// ConnectedClients returns the number of connected clients
func (h *Hub) ConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// HandleWebSocket upgrades the request, registers the client and marks the
// user online in the shared presence registry. Presence is cleared when the
// read pump exits.
func HandleWebSocket(hub *Hub, presence *PresenceRegistry, w http.ResponseWriter, r *http.Request, userID uint, role string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		UserID: userID,
		Role:   role,
		Conn:   conn,
		Send:   make(chan []byte, 256),
		Hub:    hub,
	}

	if err := presence.MarkOnline(r.Context(), userID, conn.RemoteAddr().String(), role); err != nil {
		log.Printf("Failed to mark user %d online: %v", userID, err)
	}

	client.Hub.register <- client

	go client.writePump()
	go client.readPump(presence)
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump(presence *PresenceRegistry) {
	defer func() {
		c.Hub.unregister <- c
		c.Conn.Close()
		if err := presence.MarkOffline(context.Background(), c.UserID); err != nil {
			log.Printf("Failed to mark user %d offline: %v", c.UserID, err)
		}
	}()

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var event Event
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("Error unmarshaling WebSocket message: %v", err)
			continue
		}

		// Clients only push keepalives upstream; everything else flows
		// through the HTTP API.
		if event.Type == "ping" {
			if err := presence.MarkOnline(context.Background(), c.UserID, c.Conn.RemoteAddr().String(), c.Role); err != nil {
				log.Printf("Failed to refresh presence for user %d: %v", c.UserID, err)
			}
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	defer c.Conn.Close()

	for message := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("WebSocket write error: %v", err)
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
