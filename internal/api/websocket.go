package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mkessler/ocrflow/internal/jobs"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Local network deployments connect from arbitrary origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ProgressHub fans OCR progress out to WebSocket clients. A client
// either follows one job, fed from the queue's per-job subscription
// with the pipeline's fine-grained updates, or receives the coarse
// job_update stream covering all jobs.
type ProgressHub struct {
	mu     sync.RWMutex
	global map[*progressClient]struct{}
}

// NewProgressHub creates an empty hub.
func NewProgressHub() *ProgressHub {
	return &ProgressHub{global: make(map[*progressClient]struct{})}
}

// Broadcast sends an update to every client on the global stream.
func (h *ProgressHub) Broadcast(update jobs.ProgressUpdate) {
	data, err := json.Marshal(update)
	if err != nil {
		slog.Error("failed to marshal progress update", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.global {
		c.trySend(data)
	}
}

func (h *ProgressHub) add(c *progressClient) {
	h.mu.Lock()
	h.global[c] = struct{}{}
	n := len(h.global)
	h.mu.Unlock()
	slog.Debug("progress client connected", "clients", n)
}

func (h *ProgressHub) remove(c *progressClient) {
	h.mu.Lock()
	if _, ok := h.global[c]; ok {
		delete(h.global, c)
		close(c.send)
	}
	n := len(h.global)
	h.mu.Unlock()
	slog.Debug("progress client disconnected", "clients", n)
}

// progressClient is one WebSocket connection with a buffered outbound
// queue. A lagging reader loses updates instead of stalling the sender.
type progressClient struct {
	conn *websocket.Conn
	send chan []byte
}

func (c *progressClient) trySend(data []byte) {
	select {
	case c.send <- data:
	default:
		slog.Debug("progress client lagging, dropping update")
	}
}

// relayJob pumps one job's subscription into the outbound queue. Ends
// when the subscription channel is closed, then releases the writer.
func (c *progressClient) relayJob(updates <-chan jobs.ProgressUpdate) {
	for update := range updates {
		data, err := json.Marshal(update)
		if err != nil {
			slog.Error("failed to marshal progress update", "error", err)
			continue
		}
		c.trySend(data)
	}
	close(c.send)
}

// readLoop discards inbound messages and returns on disconnect.
func (c *progressClient) readLoop() {
	defer c.conn.Close()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			return
		}
	}
}

// writeLoop drains the outbound queue until it is closed. Write errors
// are logged but draining continues so senders never block on a dead
// client.
func (c *progressClient) writeLoop() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("websocket write error", "error", err)
		}
	}
	c.conn.Close()
}

// handleWebSocket upgrades the connection and streams progress. With
// ?job=<id> the client gets that job's fine-grained pipeline updates;
// without it, the coarse job_update stream for all jobs.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := r.URL.Query().Get("job")

	var updates chan jobs.ProgressUpdate
	if jobID != "" {
		if _, ok := s.jobQueue.Get(jobID); !ok {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		// Subscribe before the handshake so no update can slip past
		// between the client's dial returning and the relay starting.
		updates = s.jobQueue.Subscribe(jobID)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		if updates != nil {
			s.jobQueue.Unsubscribe(jobID, updates)
		}
		return
	}

	client := &progressClient{conn: conn, send: make(chan []byte, 64)}
	go client.writeLoop()

	if updates != nil {
		go client.relayJob(updates)
		client.readLoop()
		s.jobQueue.Unsubscribe(jobID, updates)
		return
	}

	s.wsHub.add(client)
	client.readLoop()
	s.wsHub.remove(client)
}
