// Package wsapi bridges the storage EventBus to WebSocket subscribers,
// HIVEMIND's streaming surface (§6).
package wsapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nidhogg/hivemind/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// clientMessage is one inbound control frame: {"type": "subscribe"|
// "unsubscribe"|"ping", "data": {"task_id": "..."}}.
type clientMessage struct {
	Type string            `json:"type"`
	Data clientMessageData `json:"data,omitempty"`
}

type clientMessageData struct {
	TaskID string `json:"task_id,omitempty"`
}

// serverMessage is one outbound frame: {"type": "task_update"|"task_result"|
// "error"|"pong", "data": {...}}, mirroring storage.TaskEvent's fields under
// data for task_update/task_result and {code,message} for error.
type serverMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func errorMessage(code, message string) serverMessage {
	return serverMessage{Type: "error", Data: map[string]any{"code": code, "message": message}}
}

// taskEventMessage converts a storage.TaskEvent into the nested wire shape.
// Events typed "task_update" carry state/progress/message; "task_result"
// carries state/response/error. Both are passed through verbatim under data
// so the EventBus decides which fields are populated.
func taskEventMessage(ev storage.TaskEvent) serverMessage {
	data := map[string]any{"task_id": ev.TaskID}
	if ev.State != "" {
		data["state"] = ev.State
	}
	if ev.Progress != 0 {
		data["progress"] = ev.Progress
	}
	if ev.Message != "" {
		data["message"] = ev.Message
	}
	if ev.Response != "" {
		data["response"] = ev.Response
	}
	if ev.Error != "" {
		data["error"] = ev.Error
	}
	for k, v := range ev.Data {
		data[k] = v
	}
	return serverMessage{Type: ev.Type, Data: data}
}

// eventSubscriber is the subset of *storage.EventBus the streaming surface
// depends on; narrowed to an interface so tests can substitute a fake bus.
type eventSubscriber interface {
	Subscribe(ctx context.Context, taskID string) <-chan storage.TaskEvent
}

// Server upgrades HTTP connections and fans EventBus subscriptions out to
// each socket's own set of subscribed task ids.
type Server struct {
	bus    eventSubscriber
	logger *zap.Logger
}

func New(bus eventSubscriber, logger *zap.Logger) *Server {
	return &Server{bus: bus, logger: logger}
}

// HandleWS upgrades the connection and runs its read/write loop until the
// socket closes or the request context is cancelled.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{
		conn:   conn,
		bus:    s.bus,
		logger: s.logger,
		subs:   make(map[string]context.CancelFunc),
		outbox: make(chan serverMessage, 64),
	}
	defer c.close()

	go c.writeLoop()
	c.readLoop(r.Context())
}

// client owns one WebSocket connection's subscriptions. writeLoop is the
// sole goroutine that calls conn.WriteJSON, so every subscription
// goroutine writes through outbox instead.
type client struct {
	conn   *websocket.Conn
	bus    eventSubscriber
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]context.CancelFunc

	outbox  chan serverMessage
	closed  bool
	closeMu sync.Mutex
}

func (c *client) readLoop(ctx context.Context) {
	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			if msg.Data.TaskID != "" {
				c.subscribe(ctx, msg.Data.TaskID)
			}
		case "unsubscribe":
			if msg.Data.TaskID != "" {
				c.unsubscribe(msg.Data.TaskID)
			}
		case "ping":
			c.send(serverMessage{Type: "pong"})
		default:
			c.send(errorMessage("unknown_type", "unknown message type: "+msg.Type))
		}
	}
}

func (c *client) subscribe(parent context.Context, taskID string) {
	c.mu.Lock()
	if _, exists := c.subs[taskID]; exists {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	c.subs[taskID] = cancel
	c.mu.Unlock()

	events := c.bus.Subscribe(ctx, taskID)
	go func() {
		for ev := range events {
			c.send(taskEventMessage(ev))
		}
	}()
}

func (c *client) unsubscribe(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.subs[taskID]; ok {
		cancel()
		delete(c.subs, taskID)
	}
}

// send queues msg for the writer goroutine. If the outbox is full the
// client is considered unresponsive and its connection is torn down,
// which in turn cancels every subscription (§6: "drop the subscription on
// send failure").
func (c *client) send(msg serverMessage) {
	select {
	case c.outbox <- msg:
	default:
		c.logger.Warn("websocket client too slow, dropping connection")
		c.close()
	}
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.outbox:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *client) close() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true

	c.mu.Lock()
	for _, cancel := range c.subs {
		cancel()
	}
	c.subs = nil
	c.mu.Unlock()

	_ = c.conn.Close()
}
