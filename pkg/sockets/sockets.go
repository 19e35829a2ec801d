package sockets

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub accepts websocket clients over HTTP and fans messages out to all of
// them. Clients are write-only from the hub's point of view; anything they
// send is read and discarded to keep the connection's control frames moving.
type Hub struct {
	upgrader         websocket.Upgrader
	mu               sync.Mutex
	clients          map[*websocket.Conn]struct{}
	closed           bool
	pingIntervalSecs int
	writeTimeout     time.Duration
	onError          func(err error)
	onConnected      func(remoteAddr string)
}

func NewHub(opts ...func(*Hub)) *Hub {
	h := &Hub{
		clients:      make(map[*websocket.Conn]struct{}),
		writeTimeout: 10 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.onError != nil {
			h.onError(err)
		}
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return
	}
	h.clients[ws] = struct{}{}
	h.mu.Unlock()

	if h.onConnected != nil {
		h.onConnected(r.RemoteAddr)
	}

	h.setupPing(ws)
	go h.drain(ws)
}

// Broadcast writes msg to every connected client. Clients that fail the
// write are dropped.
func (h *Hub) Broadcast(msg []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errors.New("closed hub")
	}
	for ws := range h.clients {
		_ = ws.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.dropLocked(ws)
			if h.onError != nil {
				h.onError(err)
			}
		}
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close drops every client and rejects future upgrades.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ws := range h.clients {
		h.dropLocked(ws)
	}
	return nil
}

func (h *Hub) drain(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.mu.Lock()
			h.dropLocked(ws)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) dropLocked(ws *websocket.Conn) {
	if _, ok := h.clients[ws]; ok {
		delete(h.clients, ws)
		ws.Close()
	}
}

func (h *Hub) setupPing(ws *websocket.Conn) {
	if h.pingIntervalSecs <= 0 {
		return
	}
	ticker := time.NewTicker(time.Second * time.Duration(h.pingIntervalSecs))
	go func() {
		defer ticker.Stop()
		for {
			<-ticker.C // wait for tick
			deadline := time.Now().Add(h.writeTimeout)
			if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}()
}
