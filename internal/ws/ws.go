// Package ws pushes alteration progress to browser clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
)

const historySize = 50

// Hub manages WebSocket connections and broadcasts messages to all clients.
// It implements alter.Observer.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *slog.Logger
	mu         sync.RWMutex

	// AllowAnyOrigin skips the origin check on upgrade (dev mode).
	AllowAnyOrigin bool

	histMu  sync.Mutex
	history [][]byte
}

// Client represents a single WebSocket connection.
type Client struct {
	hub  *Hub
	send chan []byte
	conn *websocket.Conn
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("websocket client disconnected")

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return nil
		}
	}
}

// Broadcast queues a message for all connected clients. Messages are
// dropped when the queue is full.
func (h *Hub) Broadcast(message []byte) {
	h.remember(message)
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("websocket broadcast queue full, dropping message")
	}
}

func (h *Hub) remember(message []byte) {
	h.histMu.Lock()
	defer h.histMu.Unlock()
	h.history = append(h.history, message)
	if len(h.history) > historySize {
		h.history = h.history[len(h.history)-historySize:]
	}
}

// History returns the most recent messages, oldest first, as raw JSON.
func (h *Hub) History() []json.RawMessage {
	h.histMu.Lock()
	defer h.histMu.Unlock()
	out := make([]json.RawMessage, len(h.history))
	for i, m := range h.history {
		out[i] = m
	}
	return out
}

// BroadcastJSON broadcasts any JSON-serializable payload with the given message type.
func (h *Hub) BroadcastJSON(msgType MessageType, payload any) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		h.logger.Error("failed to create broadcast message", "type", msgType, "error", err)
		return
	}
	h.Broadcast(msg)
}

// BroadcastError broadcasts an error to all clients.
func (h *Hub) BroadcastError(errMsg string) {
	h.BroadcastJSON(MsgError, map[string]string{"message": errMsg})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func stepEvent(plan *alter.Plan, step alter.Step) StepEvent {
	return StepEvent{
		PlanID:     plan.ID.String(),
		Database:   plan.Database,
		Table:      step.Table,
		Column:     step.Column,
		StepID:     step.ID,
		Action:     step.Action,
		Kind:       string(step.Kind),
		Constraint: step.Constraint,
		SQL:        step.Statement.Text,
	}
}

func (h *Hub) StepStarted(plan *alter.Plan, step alter.Step) {
	ev := stepEvent(plan, step)
	ev.Status = "started"
	h.BroadcastJSON(MsgStepStarted, ev)
}

func (h *Hub) StepFinished(plan *alter.Plan, step alter.Step, err error, elapsed time.Duration) {
	ev := stepEvent(plan, step)
	ev.Status = "ok"
	ev.ElapsedMS = elapsed.Milliseconds()
	if err != nil {
		ev.Status = "failed"
		ev.Error = err.Error()
	}
	h.BroadcastJSON(MsgStepFinished, ev)
}

func (h *Hub) PlanFinished(plan *alter.Plan, err error) {
	ev := PlanEvent{
		PlanID:   plan.ID.String(),
		Database: plan.Database,
		Table:    plan.Table,
		Column:   plan.Column,
		Executed: plan.Executed,
		Total:    len(plan.Steps),
		Status:   "applied",
	}
	if err != nil {
		ev.Status = "failed"
		ev.Error = err.Error()
	}
	h.BroadcastJSON(MsgPlanFinished, ev)
}
