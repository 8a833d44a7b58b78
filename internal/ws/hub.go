package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"whatsapp-console/internal/models"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard origin is enforced at the proxy
	},
}

// Event is the envelope every client receives. Types: message, status, typing,
// presence, campaign_update, notification, sync.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Notification is a user-facing toast pushed to all connected dashboards.
type Notification struct {
	Level       string `json:"level"` // success or error
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// StatusUpdate notifies a single message status change.
type StatusUpdate struct {
	MessageID string               `json:"message_id"`
	ContactID string               `json:"contact_id"`
	Status    models.MessageStatus `json:"status"`
}

// Client represents a connected WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and broadcasts events to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client registered (%d connected)", count)
			h.BroadcastEvent("presence", map[string]int{"clients": count})
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client unregistered (%d connected)", count)
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of connected dashboards.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) BroadcastEvent(eventType string, data interface{}) {
	event := Event{
		Type: eventType,
		Data: data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshaling WS event: %v", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Printf("WS broadcast buffer full, dropping %s event", eventType)
	}
}

func (h *Hub) NotifyMessage(msg models.Message) {
	h.BroadcastEvent("message", msg)
}

func (h *Hub) NotifyStatus(msg models.Message) {
	h.BroadcastEvent("status", StatusUpdate{
		MessageID: msg.ID,
		ContactID: msg.ContactID,
		Status:    msg.Status,
	})
}

func (h *Hub) NotifyCampaign(campaign models.Campaign) {
	h.BroadcastEvent("campaign_update", campaign)
}

func (h *Hub) NotifySuccess(title, description string) {
	h.BroadcastEvent("notification", Notification{Level: "success", Title: title, Description: description})
}

func (h *Hub) NotifyError(title, description string) {
	h.BroadcastEvent("notification", Notification{Level: "error", Title: title, Description: description})
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection and enforces liveness: a client that misses
// the pong deadline is unregistered and its connection closed.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		// The only client-to-server traffic is typing indicators; rebroadcast
		// them to the other dashboards.
		var event Event
		if err := json.Unmarshal(payload, &event); err == nil && event.Type == "typing" {
			c.hub.BroadcastEvent("typing", event.Data)
		}
	}
}

func (c *Client) writePump() {
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
