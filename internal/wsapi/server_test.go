package wsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nidhogg/hivemind/internal/storage"
)

// fakeBus is an in-memory eventSubscriber standing in for
// *storage.EventBus, so tests don't require a running Redis.
type fakeBus struct {
	mu   sync.Mutex
	subs map[string][]chan storage.TaskEvent
}

func newFakeBus() *fakeBus {
	return &fakeBus{subs: make(map[string][]chan storage.TaskEvent)}
}

func (b *fakeBus) Subscribe(ctx context.Context, taskID string) <-chan storage.TaskEvent {
	ch := make(chan storage.TaskEvent, 8)
	b.mu.Lock()
	b.subs[taskID] = append(b.subs[taskID], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func (b *fakeBus) publish(taskID string, ev storage.TaskEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[taskID] {
		ch <- ev
	}
}

func dialTestServer(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	bus := newFakeBus()
	srv := New(bus, zap.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	if err := conn.WriteJSON(clientMessage{Type: "subscribe", Data: clientMessageData{TaskID: "task-1"}}); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	// Give the server a moment to register the subscription before publishing.
	time.Sleep(50 * time.Millisecond)
	bus.publish("task-1", storage.TaskEvent{Type: "task_update", TaskID: "task-1", State: "running"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg serverMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "task_update" || msg.Data["state"] != "running" || msg.Data["task_id"] != "task-1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestPingReceivesPong(t *testing.T) {
	bus := newFakeBus()
	srv := New(bus, zap.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	if err := conn.WriteJSON(clientMessage{Type: "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg serverMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "pong" {
		t.Fatalf("expected pong, got %+v", msg)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := newFakeBus()
	srv := New(bus, zap.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	conn.WriteJSON(clientMessage{Type: "subscribe", Data: clientMessageData{TaskID: "task-2"}})
	time.Sleep(50 * time.Millisecond)
	conn.WriteJSON(clientMessage{Type: "unsubscribe", Data: clientMessageData{TaskID: "task-2"}})
	time.Sleep(50 * time.Millisecond)

	bus.publish("task-2", storage.TaskEvent{Type: "task_update", TaskID: "task-2", State: "running"})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	var msg serverMessage
	err := conn.ReadJSON(&msg)
	if err == nil {
		t.Fatalf("expected no message after unsubscribe, got %+v", msg)
	}
}

func TestUnknownActionReturnsError(t *testing.T) {
	bus := newFakeBus()
	srv := New(bus, zap.NewNop())
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWS))
	defer ts.Close()

	conn := dialTestServer(t, ts)
	defer conn.Close()

	conn.WriteJSON(clientMessage{Type: "bogus"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg serverMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "error" {
		t.Fatalf("expected error message, got %+v", msg)
	}
}
