package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/ayusman/fingergun/internal/control"
	"github.com/ayusman/fingergun/internal/logger"
)

// clientBuffer is how many samples may queue for a slow client before new
// ones are dropped for it.
const clientBuffer = 16

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Action is a host control command sent by a game client.
type Action string

// Control actions.
const (
	ActionStart Action = "START"
	ActionPause Action = "PAUSE"
	ActionReset Action = "RESET"
)

// MessageTypeControl is the only message type clients send.
const MessageTypeControl = "CONTROL"

// Message is a client to server websocket message.
type Message struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

// Controller executes control actions received from clients.
type Controller interface {
	HandleControl(ctx context.Context, action Action) error
}

// ControllerFunc adapts a function to the Controller interface.
type ControllerFunc func(ctx context.Context, action Action) error

// HandleControl calls f(ctx, action).
func (f ControllerFunc) HandleControl(ctx context.Context, action Action) error {
	return f(ctx, action)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub relays control samples to every connected websocket client and passes
// their control commands to a Controller.
type Hub struct {
	controller Controller
	clients    map[*client]struct{}
	mu         sync.RWMutex
}

// NewHub creates a Hub. A nil controller ignores client commands.
func NewHub(controller Controller) *Hub {
	return &Hub{
		controller: controller,
		clients:    make(map[*client]struct{}),
	}
}

// SetController replaces the Controller that receives client commands.
func (h *Hub) SetController(controller Controller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.controller = controller
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithKV(r.Context(), "remote", r.RemoteAddr)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnKV(ctx, "websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.register(c)
	logger.InfoKV(ctx, "control client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c)
	}()

	h.readLoop(ctx, c)

	h.unregister(c)
	<-done
	conn.Close()
	logger.InfoKV(ctx, "control client disconnected")
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// readLoop parses client commands until the connection fails.
func (h *Hub) readLoop(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		action, err := parseMessage(data)
		if err != nil {
			logger.WarnKV(ctx, "ignoring client message", "error", err)
			continue
		}

		logger.InfoKV(ctx, "control command", "action", action)

		h.mu.RLock()
		controller := h.controller
		h.mu.RUnlock()

		if controller == nil {
			continue
		}
		if err := controller.HandleControl(ctx, action); err != nil {
			logger.ErrorKV(ctx, "control command failed", "action", action, "error", err)
		}
	}
}

// writeLoop is the only writer of c.conn.
func (h *Hub) writeLoop(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// Unblock the reader so ServeHTTP can finish.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}
}

// parseMessage decodes a client message into a control action.
func parseMessage(data []byte) (Action, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", fmt.Errorf("decode message: %w", err)
	}
	if msg.Type != MessageTypeControl {
		return "", fmt.Errorf("unknown message type %q", msg.Type)
	}
	switch msg.Action {
	case ActionStart, ActionPause, ActionReset:
		return msg.Action, nil
	default:
		return "", fmt.Errorf("unknown control action %q", msg.Action)
	}
}

// Broadcast sends s to every connected client. Clients that fall behind miss
// samples rather than stall the caller.
func (h *Hub) Broadcast(s control.Sample) error {
	msg, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}

	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
