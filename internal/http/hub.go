package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tracker/internal/ledger"
	applog "tracker/internal/log"
)

const writeWait = 10 * time.Second

// snapshotMessage is the only message type sent on /ws. Clients should
// ignore a snapshot whose version is not newer than the last one applied.
type snapshotMessage struct {
	Type     string          `json:"type"`
	Snapshot ledger.Snapshot `json:"snapshot"`
}

func encodeSnapshot(s ledger.Snapshot) ([]byte, error) {
	return json.Marshal(snapshotMessage{Type: "snapshot", Snapshot: s})
}

// Hub fans ledger snapshots out to websocket clients. All writes to a
// connection happen on the hub goroutine.
type Hub struct {
	mu         sync.Mutex
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn

	// pending holds the newest snapshot not yet sent; notify wakes the loop.
	// newest is the highest version accepted so far.
	pending []byte
	newest  uint64
	notify  chan struct{}

	// initial produces the message a client receives right after registering.
	initial func() ([]byte, error)

	stop     chan struct{}
	done     chan struct{}
	stopOnce   sync.Once
	started    atomic.Bool
	superseded atomic.Int64
}

func NewHub(initial func() ([]byte, error)) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		notify:     make(chan struct{}, 1),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		initial:    initial,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start begins the hub loop.
func (h *Hub) Start() {
	if h.started.CompareAndSwap(false, true) {
		go h.run()
	}
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			slog.Debug("WebSocket client connected",
				applog.FieldComponent, applog.ComponentFeed, applog.FieldCount, n)
			if h.initial != nil {
				if msg, err := h.initial(); err == nil {
					h.send(conn, msg)
				}
			}
		case conn := <-h.unregister:
			h.drop(conn)
		case <-h.notify:
			msg := h.takePending()
			if msg == nil {
				continue
			}
			h.mu.Lock()
			conns := make([]*websocket.Conn, 0, len(h.clients))
			for c := range h.clients {
				conns = append(conns, c)
			}
			h.mu.Unlock()
			for _, c := range conns {
				h.send(c, msg)
			}
		case <-h.stop:
			h.mu.Lock()
			for c := range h.clients {
				_ = c.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(time.Second))
				c.Close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) send(conn *websocket.Conn, msg []byte) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		slog.Debug("Error sending message to client",
			applog.FieldComponent, applog.ComponentFeed, applog.FieldError, err)
		h.drop(conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

// Broadcast queues a snapshot for every client and never blocks. Only the
// newest unsent snapshot is kept, so clients that fall behind skip
// intermediate states but always receive the latest one.
func (h *Hub) Broadcast(s ledger.Snapshot) {
	msg, err := encodeSnapshot(s)
	if err != nil {
		slog.Error("Failed to marshal snapshot",
			applog.FieldComponent, applog.ComponentFeed, applog.FieldError, err)
		return
	}

	h.mu.Lock()
	if s.Version < h.newest {
		h.mu.Unlock()
		return
	}
	if h.pending != nil {
		h.superseded.Add(1)
	}
	h.pending, h.newest = msg, s.Version
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

func (h *Hub) takePending() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg := h.pending
	h.pending = nil
	return msg
}

// Register hands conn to the hub. It returns false once the hub has stopped.
func (h *Hub) Register(conn *websocket.Conn) bool {
	select {
	case h.register <- conn:
		return true
	case <-h.stop:
		return false
	}
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	select {
	case h.unregister <- conn:
	case <-h.stop:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Stop closes every client connection and ends the hub loop.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stop) })
	if h.started.Load() {
		<-h.done
	}
}

// ServeWS upgrades the request and registers the connection. Incoming
// messages are read and discarded so close frames are noticed.
func (h *Hub) ServeWS(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.WarnContext(r.Context(), "Failed to upgrade to WebSocket",
				applog.FieldComponent, applog.ComponentFeed, applog.FieldError, err)
			return
		}
		if !h.Register(conn) {
			conn.Close()
			return
		}
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					h.Unregister(conn)
					return
				}
			}
		}()
	}
}
