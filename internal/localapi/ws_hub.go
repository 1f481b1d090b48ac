package localapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"mashiro/cli/internal/protocol"
	"mashiro/cli/internal/taskstore"
)

const wsWriteTimeout = 500 * time.Millisecond

type WSHub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]struct{}
	seq     atomic.Uint64
}

func NewWSHub() *WSHub {
	return &WSHub{clients: map[*websocket.Conn]struct{}{}}
}

func (h *WSHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish broadcasts a task snapshot to every connected client. Slow clients
// are skipped after wsWriteTimeout.
func (h *WSHub) Publish(topic string, task taskstore.Task) {
	evt := protocol.NewEvent(fmt.Sprintf("evt_%d", h.seq.Add(1)), topic, task)
	msg, err := json.Marshal(evt)
	if err != nil {
		return
	}

	h.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		ctx, cancel := context.WithTimeout(context.Background(), wsWriteTimeout)
		_ = c.Write(ctx, websocket.MessageText, msg)
		cancel()
	}
}
