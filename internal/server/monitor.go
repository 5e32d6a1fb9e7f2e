package server

import (
	"encoding/binary"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// monitorQueueDepth bounds per-client backlog; a slow client drops
// blocks instead of stalling the engine.
const monitorQueueDepth = 32

// MonitorHub fans the engine's monitor output out to WebSocket
// listeners as 16-bit little-endian PCM blocks. It implements the
// engine sink interface, so it plugs directly into the mix bus.
type MonitorHub struct {
	logger  *slog.Logger
	clients map[*websocket.Conn]chan []byte
	mu      sync.Mutex
}

// NewMonitorHub creates an empty hub.
func NewMonitorHub(logger *slog.Logger) *MonitorHub {
	return &MonitorHub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan []byte),
	}
}

// Write broadcasts one block of mono mix output to every client.
func (h *MonitorHub) Write(samples []float64) {
	h.mu.Lock()
	if len(h.clients) == 0 {
		h.mu.Unlock()
		return
	}

	data := encodePCM16LE(samples)
	for _, queue := range h.clients {
		select {
		case queue <- data:
		default: // client lagging, drop the block
		}
	}
	h.mu.Unlock()
}

// Add registers a connection and starts its writer goroutine. The hub
// owns the connection until it fails or Remove is called.
func (h *MonitorHub) Add(conn *websocket.Conn) {
	queue := make(chan []byte, monitorQueueDepth)

	h.mu.Lock()
	h.clients[conn] = queue
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("Monitor listener connected", slog.Int("listeners", count))

	go func() {
		defer h.Remove(conn)
		for data := range queue {
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				h.logger.Debug("Monitor listener write failed", slog.String("error", err.Error()))
				return
			}
		}
	}()
}

// Remove drops a connection and closes it.
func (h *MonitorHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	queue, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(queue)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		conn.Close()
		h.logger.Info("Monitor listener disconnected", slog.Int("listeners", count))
	}
}

// ListenerCount returns the number of connected clients.
func (h *MonitorHub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll disconnects every client.
func (h *MonitorHub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.Remove(conn)
	}
}

func encodePCM16LE(samples []float64) []byte {
	data := make([]byte, len(samples)*2)
	for i, v := range samples {
		scaled := v * 32768.0
		if scaled > 32767 {
			scaled = 32767
		}
		if scaled < -32768 {
			scaled = -32768
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(scaled)))
	}
	return data
}
