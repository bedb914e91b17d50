package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by CORS and the bearer token
	},
}

// Client represents a WebSocket client. Rooms are fixed at connect time.
type Client struct {
	ID    string
	Role  string
	Rooms []string
	Conn  *websocket.Conn
	Send  chan []byte
	Hub   *Hub
}

type roomMessage struct {
	room string
	data []byte
}

// Hub maintains the set of active clients and fans messages out by room
type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan roomMessage
	done       chan struct{}
	mutex      sync.RWMutex
	log        *slog.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan roomMessage, sendBuffer),
		done:       make(chan struct{}),
		log:        logger,
	}
}

// Run owns membership changes until ctx is cancelled, then closes every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			for _, room := range client.Rooms {
				if h.rooms[room] == nil {
					h.rooms[room] = make(map[*Client]bool)
				}
				h.rooms[room][client] = true
			}
			h.mutex.Unlock()
			h.log.Info("websocket client connected",
				slog.String("client", client.ID),
				slog.String("role", client.Role),
				slog.Any("rooms", client.Rooms))

		case client := <-h.unregister:
			h.mutex.Lock()
			if h.clients[client] {
				h.drop(client)
			}
			h.mutex.Unlock()
			h.log.Info("websocket client disconnected", slog.String("client", client.ID))

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.rooms[msg.room] {
				select {
				case client.Send <- msg.data:
				default:
					h.log.Warn("dropping slow websocket client",
						slog.String("client", client.ID),
						slog.String("room", msg.room))
					h.drop(client)
				}
			}
			h.mutex.Unlock()
		}
	}
}

// drop removes a client from every room and closes its send channel.
// Callers hold the write lock.
func (h *Hub) drop(client *Client) {
	for _, room := range client.Rooms {
		if members, ok := h.rooms[room]; ok {
			delete(members, client)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.clients, client)
	close(client.Send)
}

// Deliver queues an encoded message for every client in room
func (h *Hub) Deliver(ctx context.Context, room string, message []byte) error {
	select {
	case h.broadcast <- roomMessage{room: room, data: message}:
		return nil
	case <-h.done:
		return ErrTransportUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetConnectedClients returns the number of connected clients
func (h *Hub) GetConnectedClients() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// RoomSize returns the number of clients in a room
func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// WebSocketMessage is the envelope of every event pushed to clients
type WebSocketMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeMessage builds the wire form of an event
func EncodeMessage(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WebSocketMessage{Type: event, Data: data})
}

// HandleWebSocket upgrades an already authenticated request and joins the
// connection to rooms until it disconnects.
func HandleWebSocket(hub *Hub, w http.ResponseWriter, r *http.Request, id, role string, rooms []string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &Client{
		ID:    id,
		Role:  role,
		Rooms: rooms,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
		Hub:   hub,
	}

	if !hub.join(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump only services control frames; clients never send commands over the socket
func (c *Client) readPump() {
	defer func() {
		c.Hub.leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.log.Warn("websocket read error", slog.String("client", c.ID), slog.Any("error", err))
			}
			return
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Hub.log.Warn("websocket write error", slog.String("client", c.ID), slog.Any("error", err))
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
