package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/abakirov/taskhub/internal/metrics"
	"github.com/abakirov/taskhub/internal/token"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// sendBuffer bounds per-connection memory; when it fills, events for
	// that connection are dropped, not queued.
	sendBuffer = 16
)

// Event is the wire format pushed to clients.
type Event struct {
	Name      string    `json:"event"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// accessVerifier is the slice of the token service the handshake needs.
type accessVerifier interface {
	VerifyAccess(tokenString string) (*token.Claims, error)
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte
}

// Hub fans account and task events out to every live connection of a user.
// Delivery is fire-and-forget: no acknowledgment, no replay, and events for
// users with no live connection are silently dropped. Scope is a single
// process; a multi-instance deployment would need an external pub/sub.
type Hub struct {
	tokens   accessVerifier
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu    sync.RWMutex
	users map[string]map[*conn]struct{}
}

func NewHub(tokens accessVerifier, logger *slog.Logger) *Hub {
	return &Hub{
		tokens: tokens,
		logger: logger.With("component", "realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		users: make(map[string]map[*conn]struct{}),
	}
}

// Handle authenticates the handshake and joins the connection to the user's
// channel. The token comes from a "token" query parameter or a bearer header.
// A missing or invalid token rejects the connection before it joins anything.
func (h *Hub) Handle(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
			raw = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	claims, err := h.tokens.VerifyAccess(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn("websocket upgrade", "error", err)
		return
	}

	cn := &conn{ws: ws, send: make(chan []byte, sendBuffer)}
	h.register(claims.Subject, cn)
	metrics.WebsocketConnections.Inc()

	go h.writePump(cn)
	go h.readPump(claims.Subject, cn)
}

func (h *Hub) register(userID string, cn *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[userID] == nil {
		h.users[userID] = make(map[*conn]struct{})
	}
	h.users[userID][cn] = struct{}{}
}

func (h *Hub) unregister(userID string, cn *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.users[userID]; ok {
		if _, ok := conns[cn]; ok {
			delete(conns, cn)
			close(cn.send)
			metrics.WebsocketConnections.Dec()
		}
		if len(conns) == 0 {
			delete(h.users, userID)
		}
	}
}

// readPump discards inbound frames; clients only listen. Its job is to notice
// transport close and keep the pong deadline fresh.
func (h *Hub) readPump(userID string, cn *conn) {
	defer func() {
		h.unregister(userID, cn)
		cn.ws.Close()
	}()

	cn.ws.SetReadLimit(512)
	cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	cn.ws.SetPongHandler(func(string) error {
		return cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := cn.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cn.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-cn.send:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cn.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cn.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Notify pushes an event to every live connection of one user. If none is
// connected, or a connection's buffer is full, the event is dropped.
func (h *Hub) Notify(userID, name, message string, payload any) {
	data, err := json.Marshal(Event{
		Name:      name,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("marshal event", "event", name, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for cn := range h.users[userID] {
		select {
		case cn.send <- data:
		default:
			metrics.RealtimeEventsDroppedTotal.Inc()
		}
	}
}

// BroadcastAll pushes a system-wide notice to every live connection.
func (h *Hub) BroadcastAll(name, message string, payload any) {
	data, err := json.Marshal(Event{
		Name:      name,
		Message:   message,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("marshal event", "event", name, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.users {
		for cn := range conns {
			select {
			case cn.send <- data:
			default:
				metrics.RealtimeEventsDroppedTotal.Inc()
			}
		}
	}
}
