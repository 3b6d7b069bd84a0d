package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/civil-defense-api/models"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// sendBuffer is how many events may queue for a client before it is
// considered stalled and dropped
const sendBuffer = 32

// Hub keeps the websocket clients that follow occurrence changes
type Hub struct {
	clients map[*wsClient]struct{}
	mutex   sync.Mutex
}

// wsClient is one connection with its own queue, only writePump writes to conn
type wsClient struct {
	conn *websocket.Conn
	user string
	send chan models.OccurrenceEvent
}

// NewHub returns an empty hub
func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

// OccurrencesWebSocketHandler upgrades the request and keeps the connection
// registered until the client goes away
func (h *Hub) OccurrencesWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade error", "error", err)
		return
	}

	c := &wsClient{conn: conn, user: actorID(r), send: make(chan models.OccurrenceEvent, sendBuffer)}
	h.mutex.Lock()
	h.clients[c] = struct{}{}
	h.mutex.Unlock()
	zap.S().Debugw("client connected to /ws/occurrences", "userId", c.user)

	go c.writePump()
	for {
		if _, _, err := conn.NextReader(); err != nil {
			break
		}
	}

	h.remove(c)
	zap.S().Debugw("client disconnected from /ws/occurrences", "userId", c.user)
}

// Broadcast queues the event for every connected client without waiting on
// the network. Clients whose queue is full are dropped.
func (h *Hub) Broadcast(event string, data interface{}) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	msg := models.OccurrenceEvent{Event: event, Data: data}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			zap.S().Warnw("dropping stalled websocket client", "event", event, "userId", c.user)
			h.removeLocked(c)
		}
	}
}

// writePump delivers queued events until the queue is closed or a write fails
func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			zap.S().Warnw("failed to send occurrence event", "event", msg.Event, "userId", c.user, "error", err)
			return
		}
	}
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for c := range h.clients {
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		h.removeLocked(c)
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(c)
}

// removeLocked unregisters c and ends its writePump, which closes the connection
func (h *Hub) removeLocked(c *wsClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// tokenFromQuery lets browser websocket clients, which cannot set headers,
// pass the bearer token as ?access_token=
func tokenFromQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token := r.URL.Query().Get("access_token"); token != "" && r.Header.Get("Authorization") == "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		next.ServeHTTP(w, r)
	})
}
