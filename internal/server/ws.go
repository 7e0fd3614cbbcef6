package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/magiccandle/internal/blow"
	"github.com/ayusman/magiccandle/internal/logging"
	"github.com/ayusman/magiccandle/internal/scene"
)

// Message types sent on /api/events.
const (
	MessageEvent = "event"
	MessageScene = "scene"
)

const (
	clientBuffer = 32
	writeTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Message is one JSON frame on the event socket.
type Message struct {
	Type  string          `json:"type"`
	Event *blow.Event     `json:"event,omitempty"`
	Scene *scene.Snapshot `json:"scene,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// EventsHub fans detector events and scene snapshots out to WebSocket clients.
// A client that cannot keep up loses messages rather than stalling the loop.
type EventsHub struct {
	log     logrus.FieldLogger
	clients map[*client]struct{}
	mu      sync.RWMutex
	closed  bool
}

// NewEventsHub creates an empty hub.
func NewEventsHub(log logrus.FieldLogger) *EventsHub {
	if log == nil {
		log = logging.Discard()
	}
	return &EventsHub{
		log:     log.WithField("component", "events"),
		clients: make(map[*client]struct{}),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade error")
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	if !h.add(c) {
		conn.Close()
		return
	}
	defer h.remove(c)

	go h.writePump(c)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (h *EventsHub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *EventsHub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *EventsHub) writePump(c *client) {
	defer c.conn.Close()

	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Clients returns the number of connected clients.
func (h *EventsHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends msg to every connected client without blocking.
func (h *EventsHub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("Failed to encode message")
		return
	}

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.WithField("type", msg.Type).Debug("Dropping message for slow client")
		}
	}
}

// BroadcastEvent publishes a detector event.
func (h *EventsHub) BroadcastEvent(ev blow.Event) {
	h.Broadcast(Message{Type: MessageEvent, Event: &ev})
}

// BroadcastScene publishes a scene snapshot.
func (h *EventsHub) BroadcastScene(snap scene.Snapshot) {
	h.Broadcast(Message{Type: MessageScene, Scene: &snap})
}

// Close disconnects every client and rejects new ones.
func (h *EventsHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
