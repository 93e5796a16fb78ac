package gateway

import (
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// Event is one job lifecycle notification pushed to websocket listeners.
// Events cover jobs submitted through this gateway only; workers in other
// processes have no path back to it.
type Event struct {
	Kind    string  `json:"kind"` // submitted | finished
	JobType string  `json:"job_type"`
	At      float64 `json:"at"`
}

// Hub fans events out to every connected websocket client.
type Hub struct {
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

func (h *Hub) AddClient(conn *websocket.Conn) {
	h.clientsMu.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.clientsMu.Unlock()

	glog.V(2).Infof("event client connected, total: %d", total)

	go func() {
		defer func() {
			h.clientsMu.Lock()
			delete(h.clients, conn)
			h.clientsMu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) Broadcast(kind, jobType string) {
	event := Event{
		Kind:    kind,
		JobType: jobType,
		At:      float64(time.Now().UnixNano()) / float64(time.Second),
	}
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for conn := range h.clients {
		if err := conn.WriteJSON(event); err != nil {
			glog.Errorf("event push failed: %v", err)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	return len(h.clients)
}
