package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"brigade/internal/lifecycle"
)

// WebSocket upgrader configuration
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the display is served from tenant subdomains
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Hub fans order lifecycle events out to display subscribers, scoped by
// tenant. Delivery is best-effort: the polling endpoints remain the source
// of truth, the socket just makes the display snappier.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]struct{}
	log     *zap.Logger
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*wsClient]struct{}),
		log:     zap.L().Named("ws"),
	}
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	tenantID string
	hub      *Hub
}

// Publish implements lifecycle.Notifier; a slow subscriber is dropped
// rather than blocking the lifecycle
func (h *Hub) Publish(tenantID string, event lifecycle.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[tenantID] {
		select {
		case client.send <- payload:
		default:
			h.log.Warn("dropping slow websocket subscriber",
				zap.String("tenant_id", tenantID))
			go client.close()
		}
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.tenantID] == nil {
		h.clients[c.tenantID] = make(map[*wsClient]struct{})
	}
	h.clients[c.tenantID][c] = struct{}{}
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if clients, ok := h.clients[c.tenantID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.clients, c.tenantID)
		}
	}
}

// HandleWS upgrades a display connection and subscribes it to its tenant's
// order events
func (s *Server) HandleWS(c *gin.Context) {
	tenant, ok := tenantFrom(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Tenant ID missing"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		loggerFrom(c).Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn:     conn,
		send:     make(chan []byte, 64),
		tenantID: tenant.ID,
		hub:      s.hub,
	}
	s.hub.register(client)

	go client.writePump()
	go client.readPump()
}

func (c *wsClient) close() {
	c.hub.unregister(c)
	c.conn.Close()
}

// readPump drains inbound frames; the display sends nothing meaningful but
// pongs keep the connection alive
func (c *wsClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
	}
}

// writePump pushes queued events and keepalive pings to the client
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
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
