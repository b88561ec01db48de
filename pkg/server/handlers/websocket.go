package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mnohosten/pagecache/pkg/storage"
)

// upgrader is the shared WebSocket upgrader. Origin checking is left wide
// open here; a deployment fronting this with a browser UI should restrict
// it at the reverse proxy.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// FrameWatchManager periodically snapshots the buffer pool's frame table
// and broadcasts it to every subscribed WebSocket connection.
type FrameWatchManager struct {
	bpm      *storage.BufferPoolManager
	interval time.Duration

	mu          sync.RWMutex
	connections map[string]*frameWatchConnection
}

// frameWatchConnection is one active WebSocket subscriber.
type frameWatchConnection struct {
	id         string
	conn       *websocket.Conn
	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// FrameWatchMessage is a message sent to a subscribed client.
type FrameWatchMessage struct {
	Type        string                   `json:"type"` // "connected", "snapshot", "heartbeat", "error"
	Frames      []storage.FrameSnapshot  `json:"frames,omitempty"`
	ValidFrames int                      `json:"valid_frames,omitempty"`
	Error       string                   `json:"error,omitempty"`
	Message     string                   `json:"message,omitempty"`
}

// NewFrameWatchManager creates a manager that polls bpm every interval.
func NewFrameWatchManager(bpm *storage.BufferPoolManager, interval time.Duration) *FrameWatchManager {
	if interval <= 0 {
		interval = time.Second
	}
	return &FrameWatchManager{
		bpm:         bpm,
		interval:    interval,
		connections: make(map[string]*frameWatchConnection),
	}
}

// Close closes every active connection.
func (m *FrameWatchManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, conn := range m.connections {
		conn.Close()
	}
	m.connections = make(map[string]*frameWatchConnection)
	return nil
}

func (m *FrameWatchManager) addConnection(conn *frameWatchConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[conn.id] = conn
}

func (m *FrameWatchManager) removeConnection(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
}

// Close tears down a single connection.
func (c *frameWatchConnection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *frameWatchConnection) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// HandleFrameWatch upgrades the request to a WebSocket and streams frame
// snapshots from manager until the client disconnects.
func (h *Handlers) HandleFrameWatch(manager *FrameWatchManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("frame watch: failed to upgrade connection: %v", err)
			return
		}

		connID := fmt.Sprintf("ws-%d", time.Now().UnixNano())
		ctx, cancel := context.WithCancel(context.Background())

		wsConn := &frameWatchConnection{
			id:         connID,
			conn:       conn,
			cancelFunc: cancel,
		}

		manager.addConnection(wsConn)
		defer func() {
			manager.removeConnection(connID)
			wsConn.Close()
		}()

		ack := FrameWatchMessage{Type: "connected", Message: "frame watch connected"}
		if err := wsConn.writeJSON(ack); err != nil {
			log.Printf("frame watch: failed to send ack: %v", err)
			return
		}

		// Drain control messages (e.g. close frames) from the client so
		// the connection's read deadline machinery stays alive.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		ticker := time.NewTicker(manager.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				frames, valid := manager.bpm.DumpFrames()
				msg := FrameWatchMessage{
					Type:        "snapshot",
					Frames:      frames,
					ValidFrames: valid,
				}
				if err := wsConn.writeJSON(msg); err != nil {
					log.Printf("frame watch: failed to send snapshot: %v", err)
					return
				}
			}
		}
	}
}

// SetupWebSocketRoutes adds the frame-watch WebSocket route to the router
// and returns the manager driving it.
func SetupWebSocketRoutes(r chi.Router, h *Handlers, bpm *storage.BufferPoolManager, interval time.Duration) *FrameWatchManager {
	manager := NewFrameWatchManager(bpm, interval)
	r.Get("/_ws/frames", h.HandleFrameWatch(manager))
	return manager
}
