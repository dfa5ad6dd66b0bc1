package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/posepad/internal/emulator"
	"github.com/ayusman/posepad/internal/log"
)

const (
	eventBuffer  = 64
	writeTimeout = time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Event is one message on the live feed.
type Event struct {
	Type      string               `json:"type"`
	Timestamp int64                `json:"timestamp"`
	Step      *emulator.StepResult `json:"step,omitempty"`
}

// EventsHandler broadcasts engine steps to WebSocket clients. Publish never
// blocks the caller; events are dropped while the buffer is full.
type EventsHandler struct {
	events  chan Event
	clients map[*websocket.Conn]bool
	mu      sync.RWMutex
	once    sync.Once
	done    chan struct{}
}

// NewEventsHandler creates a new EventsHandler and starts its broadcaster.
func NewEventsHandler() *EventsHandler {
	h := &EventsHandler{
		events:  make(chan Event, eventBuffer),
		clients: make(map[*websocket.Conn]bool),
		done:    make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// Publish queues a step for every connected client. It is meant to be
// registered as an engine observer.
func (h *EventsHandler) Publish(step emulator.StepResult) {
	if h.Clients() == 0 {
		return
	}

	ev := Event{
		Type:      "step",
		Timestamp: step.Timestamp.UnixMilli(),
		Step:      &step,
	}

	select {
	case h.events <- ev:
	default:
	}
}

// Clients returns the number of connected clients.
func (h *EventsHandler) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster and disconnects every client.
func (h *EventsHandler) Close() {
	h.once.Do(func() {
		close(h.done)

		h.mu.Lock()
		for conn := range h.clients {
			conn.Close()
			delete(h.clients, conn)
		}
		h.mu.Unlock()
	})
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The greeting goes out before the broadcaster can see the connection.
	hello, _ := json.Marshal(Event{Type: "hello", Timestamp: time.Now().UnixMilli()})
	if err := h.write(conn, hello); err != nil {
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// broadcast sends queued events to all connected clients.
func (h *EventsHandler) broadcast() {
	for {
		select {
		case <-h.done:
			return
		case ev := <-h.events:
			msg, err := json.Marshal(ev)
			if err != nil {
				log.Error("encode event", "error", err)
				continue
			}

			h.mu.RLock()
			for conn := range h.clients {
				if err := h.write(conn, msg); err != nil {
					log.Debug("event write failed", "error", err)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// write sends one text message. A connection has at most one writer at a
// time: ServeHTTP before registration, broadcast after.
func (h *EventsHandler) write(conn *websocket.Conn, msg []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}
