package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reclaim/internal/interfaces"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local tooling and dashboards connect from arbitrary origins.
		return true
	},
}

// wsMessage is the frame pushed to connected clients for every job event
type wsMessage struct {
	Type      string                 `json:"type"`
	JobID     string                 `json:"job_id"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// WebSocketHandler fans job lifecycle events out to connected clients.
// Step events are throttled per connection so a chatty run cannot flood
// slow consumers; terminal events always go through.
type WebSocketHandler struct {
	events interfaces.EventService
	logger arbor.ILogger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	subID   string
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan wsMessage
	throttle *rate.Limiter
}

// NewWebSocketHandler creates the handler and subscribes it to the bus
func NewWebSocketHandler(events interfaces.EventService, logger arbor.ILogger) *WebSocketHandler {
	h := &WebSocketHandler{
		events:  events,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
	h.subID = events.SubscribeAll(h.onEvent)
	return h
}

// Close unsubscribes from the bus and drops all connections
func (h *WebSocketHandler) Close() {
	h.events.Unsubscribe(h.subID)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
	}
	h.clients = make(map[*wsClient]struct{})
}

// HandleWebSocket upgrades the connection and streams job events
// GET /ws
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{
		conn:     conn,
		send:     make(chan wsMessage, 64),
		throttle: rate.NewLimiter(rate.Every(250*time.Millisecond), 5),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", count).Str("remote", r.RemoteAddr).Msg("WebSocket client connected")

	go h.writeLoop(client)
	go h.readLoop(client)
}

// onEvent bridges the event bus onto connected clients
func (h *WebSocketHandler) onEvent(_ context.Context, event interfaces.Event) {
	h.broadcast(wsMessage{
		Type:      string(event.Type),
		JobID:     event.JobID,
		Payload:   event.Payload,
		Timestamp: time.Now(),
	})
}

func (h *WebSocketHandler) broadcast(msg wsMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if msg.Type == string(interfaces.EventStepCompleted) && !client.throttle.Allow() {
			continue
		}
		select {
		case client.send <- msg:
		default:
			// Slow consumer; drop the frame rather than block the bus.
		}
	}
}

func (h *WebSocketHandler) writeLoop(client *wsClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer client.conn.Close()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteJSON(msg); err != nil {
				h.drop(client)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.drop(client)
				return
			}
		}
	}
}

// readLoop discards inbound frames and detects disconnects
func (h *WebSocketHandler) readLoop(client *wsClient) {
	client.conn.SetReadLimit(4096)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.drop(client)
			return
		}
	}
}

func (h *WebSocketHandler) drop(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		client.conn.Close()
	}
}
