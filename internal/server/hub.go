package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Kaysham/spykee-remote/internal/robot"
)

// Hub fans robot events out to attached WebSocket clients and remembers the
// most recent video frame for the snapshot endpoint. State events go out as
// JSON text messages; video frames as binary messages.
type Hub struct {
	logger *slog.Logger

	clients   map[*websocket.Conn]chan outMessage
	lastFrame []byte
	mu        sync.RWMutex
}

type outMessage struct {
	messageType int
	data        []byte
}

// stateMessage is the JSON shape of non-video events on the feed.
type stateMessage struct {
	Type    string `json:"type"`
	Battery int    `json:"battery,omitempty"`
	Dock    string `json:"dock,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*websocket.Conn]chan outMessage),
	}
}

// Publish forwards one session event to every attached client. Slow clients
// have their queues dropped rather than stalling the publisher.
func (h *Hub) Publish(ev robot.Event) {
	var msg outMessage
	switch e := ev.(type) {
	case robot.VideoFrameEvent:
		h.mu.Lock()
		h.lastFrame = e.Frame
		h.mu.Unlock()
		msg = outMessage{messageType: websocket.BinaryMessage, data: e.Frame}
	case robot.BatteryEvent:
		msg = h.jsonMessage(stateMessage{Type: "battery", Battery: e.Level})
	case robot.DockEvent:
		msg = h.jsonMessage(stateMessage{Type: "dock", Dock: e.State.String()})
	case robot.ClosedEvent:
		sm := stateMessage{Type: "closed"}
		if e.Err != nil {
			sm.Error = e.Err.Error()
		}
		msg = h.jsonMessage(sm)
	default:
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn, queue := range h.clients {
		select {
		case queue <- msg:
		default:
			h.logger.Debug("websocket client queue full, dropping message",
				slog.String("remote_addr", conn.RemoteAddr().String()),
			)
		}
	}
}

func (h *Hub) jsonMessage(sm stateMessage) outMessage {
	data, _ := json.Marshal(sm)
	return outMessage{messageType: websocket.TextMessage, data: data}
}

// LastFrame returns the most recent video frame, or nil before the first one.
func (h *Hub) LastFrame() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.lastFrame
}

// ClientCount returns the number of attached feed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// attach registers a client and starts its writer goroutine.
func (h *Hub) attach(conn *websocket.Conn) {
	queue := make(chan outMessage, 32)

	h.mu.Lock()
	h.clients[conn] = queue
	h.mu.Unlock()

	h.logger.Info("feed client attached", slog.String("remote_addr", conn.RemoteAddr().String()))

	go func() {
		defer h.detach(conn)
		for msg := range queue {
			if err := conn.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}
		}
	}()

	// Drain reads so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.detach(conn)
				return
			}
		}
	}()
}

func (h *Hub) detach(conn *websocket.Conn) {
	h.mu.Lock()
	queue, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
		close(queue)
	}
	h.mu.Unlock()

	if ok {
		conn.Close()
		h.logger.Info("feed client detached", slog.String("remote_addr", conn.RemoteAddr().String()))
	}
}

// CloseAll detaches every client. Called on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		h.detach(conn)
	}
}
