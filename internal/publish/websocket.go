package publish

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"adsbtrack/internal/notify"
	"adsbtrack/internal/track"
)

// writeTimeout bounds a write to one WebSocket client
const writeTimeout = 5 * time.Second

// Hub streams track updates to WebSocket clients. New clients first get a
// snapshot of every track.
type Hub struct {
	clients   map[*websocket.Conn]*sync.Mutex // each connection has its own write mutex
	clientsMu sync.RWMutex
	upgrader  websocket.Upgrader
	snapshot  func() []*track.Aircraft
	logger    *logrus.Logger
}

// NewHub creates a hub. snapshot supplies the tracks sent on connect.
func NewHub(snapshot func() []*track.Aircraft, logger *logrus.Logger) *Hub {
	return &Hub{
		clients:  make(map[*websocket.Conn]*sync.Mutex),
		snapshot: snapshot,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    1024,
			WriteBufferSize:   4096,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Len returns the number of connected clients
func (h *Hub) Len() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and holds the connection until the client
// goes away
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("WebSocket upgrade failed")
		return
	}

	writeMu := &sync.Mutex{}
	h.clientsMu.Lock()
	h.clients[conn] = writeMu
	h.clientsMu.Unlock()
	h.logger.WithField("remote", r.RemoteAddr).Debug("WebSocket client connected")

	data, err := json.Marshal(Message{Type: TypeSnapshot, Data: h.snapshot()})
	if err == nil {
		err = h.write(conn, writeMu, data)
	}
	if err != nil {
		h.remove(conn)
		return
	}

	// Incoming messages are discarded; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

// PublishAircraft implements Publisher
func (h *Hub) PublishAircraft(a *track.Aircraft) {
	h.broadcast(Message{Type: TypeAircraft, Data: a})
}

// PublishExpired implements Publisher
func (h *Hub) PublishExpired(e track.Expired) {
	h.broadcast(Message{Type: TypeExpired, Data: e})
}

// PublishNotification implements Publisher
func (h *Hub) PublishNotification(n notify.Notification) {
	h.broadcast(Message{Type: TypeNotification, Data: n})
}

// Close disconnects every client
func (h *Hub) Close() {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal WebSocket message")
		return
	}

	// Copy the client list so slow writes do not hold the lock
	h.clientsMu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	mutexes := make([]*sync.Mutex, 0, len(h.clients))
	for conn, mu := range h.clients {
		conns = append(conns, conn)
		mutexes = append(mutexes, mu)
	}
	h.clientsMu.RUnlock()

	for i, conn := range conns {
		if err := h.write(conn, mutexes[i], data); err != nil {
			h.logger.WithError(err).Debug("Dropping WebSocket client")
			h.remove(conn)
		}
	}
}

func (h *Hub) write(conn *websocket.Conn, mu *sync.Mutex, data []byte) error {
	mu.Lock()
	defer mu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.clientsMu.Lock()
	_, ok := h.clients[conn]
	delete(h.clients, conn)
	h.clientsMu.Unlock()
	if ok {
		conn.Close()
	}
}
