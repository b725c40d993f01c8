package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"timeclock/gateway/internal/protocol"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}

	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
)

type broadcast struct {
	deviceCode uint32
	data       []byte
}

// Client is a WebSocket subscriber to attendance events
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Hub  *Hub

	mu         sync.RWMutex
	deviceCode *uint32 // nil means every device
}

func (c *Client) wants(deviceCode uint32) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceCode == nil || *c.deviceCode == deviceCode
}

func (c *Client) filter(deviceCode uint32) {
	c.mu.Lock()
	c.deviceCode = &deviceCode
	c.mu.Unlock()
}

// Hub fans ingested attendance events out to WebSocket clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan broadcast
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan broadcast, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop; it returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("websocket hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Str("client", client.ID).Int("clients", total).Msg("websocket client connected")

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				if !client.wants(msg.deviceCode) {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					// slow consumer
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.Send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	log.Debug().Str("client", client.ID).Int("clients", total).Msg("websocket client disconnected")
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for client := range h.clients {
		close(client.Send)
		delete(h.clients, client)
	}
	h.mu.Unlock()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish queues an attendance event for every interested client. It never
// blocks on a full queue.
func (h *Hub) Publish(ctx context.Context, event *protocol.AttendanceEvent) error {
	data, err := json.Marshal(map[string]interface{}{
		"type": "attendance",
		"data": event,
	})
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- broadcast{deviceCode: event.DeviceCode, data: data}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		log.Warn().Uint32("device_code", event.DeviceCode).Msg("websocket broadcast queue full, event dropped")
		return nil
	}
}

// HandleEvents upgrades the request and streams attendance events. An
// optional device_code query parameter limits the stream to one terminal.
func (h *Hub) HandleEvents(c *gin.Context) {
	var filter *uint32
	if raw := c.Query("device_code"); raw != "" {
		code, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid device_code"})
			return
		}
		v := uint32(code)
		filter = &v
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := &Client{
		ID:         uuid.NewString(),
		Conn:       conn,
		Send:       make(chan []byte, 256),
		Hub:        h,
		deviceCode: filter,
	}
	welcome, _ := json.Marshal(map[string]interface{}{
		"type":      "connected",
		"client_id": client.ID,
	})
	client.Send <- welcome

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// HandleStats reports hub statistics
func (h *Hub) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": h.ClientCount(),
	})
}

type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ReadPump handles subscription messages from the client
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(64 * 1024)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client", c.ID).Msg("websocket read error")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		switch msg.Type {
		case "subscribe":
			var data struct {
				DeviceCode uint32 `json:"device_code"`
			}
			if err := json.Unmarshal(msg.Data, &data); err == nil && data.DeviceCode != 0 {
				c.filter(data.DeviceCode)
			}
		}
	}
}

// WritePump writes queued events and keepalive pings to the client
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
