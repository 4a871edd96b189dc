package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/senomardetritos/sgbd-sqlserver/internal/alter"
	"github.com/senomardetritos/sgbd-sqlserver/internal/dialect"
	"github.com/senomardetritos/sgbd-sqlserver/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data := <-c.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal error: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("did not receive broadcast")
	}
	return Message{}
}

func samplePlan() (*alter.Plan, alter.Step) {
	step := alter.Step{
		ID: "drop:unique", Action: alter.ActionDrop, Kind: schema.KindUnique,
		Table: "users", Column: "email", Constraint: "UQ_old",
		Statement: dialect.Statement{Text: "ALTER TABLE [users] DROP CONSTRAINT [UQ_old]"},
	}
	return &alter.Plan{ID: uuid.New(), Table: "users", Column: "email", Steps: []alter.Step{step}}, step
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := startHub(t)
	client := &Client{hub: hub, send: make(chan []byte, 256)}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("after register: ClientCount() = %d, want 1", got)
	}

	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)
	if got := hub.ClientCount(); got != 0 {
		t.Errorf("after unregister: ClientCount() = %d, want 0", got)
	}
}

func TestHubBroadcast_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- slow
	time.Sleep(50 * time.Millisecond)

	slow.send <- []byte("filler")
	hub.Broadcast([]byte("overflow"))
	time.Sleep(50 * time.Millisecond)

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("slow client should be dropped, ClientCount() = %d, want 0", got)
	}
}

func TestHubRunStopsOnCancel(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- hub.Run(ctx) }()

	client := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.register <- client
	cancel()

	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if _, ok := <-client.send; ok {
		t.Error("client channel should be closed on shutdown")
	}
}

func TestObserverEvents(t *testing.T) {
	hub := startHub(t)
	client := &Client{hub: hub, send: make(chan []byte, 256)}
	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	plan, step := samplePlan()
	hub.StepStarted(plan, step)
	hub.StepFinished(plan, step, errors.New("constraint in use"), 20*time.Millisecond)
	hub.PlanFinished(plan, errors.New("step failed"))

	started := receive(t, client)
	if started.Type != MsgStepStarted {
		t.Fatalf("type = %q", started.Type)
	}
	var sev StepEvent
	json.Unmarshal(started.Payload, &sev)
	if sev.Status != "started" || sev.Constraint != "UQ_old" || sev.Kind != "unique" {
		t.Errorf("started payload = %+v", sev)
	}

	finished := receive(t, client)
	json.Unmarshal(finished.Payload, &sev)
	if finished.Type != MsgStepFinished || sev.Status != "failed" || sev.Error != "constraint in use" || sev.ElapsedMS != 20 {
		t.Errorf("finished = %s %+v", finished.Type, sev)
	}

	done := receive(t, client)
	var pev PlanEvent
	json.Unmarshal(done.Payload, &pev)
	if done.Type != MsgPlanFinished || pev.Status != "failed" || pev.Total != 1 || pev.PlanID != plan.ID.String() {
		t.Errorf("plan finished = %s %+v", done.Type, pev)
	}

	if got := len(hub.History()); got != 3 {
		t.Errorf("history length = %d, want 3", got)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	hub := NewHub(testLogger())
	for i := 0; i < historySize+10; i++ {
		hub.remember([]byte(`{"type":"error"}`))
	}
	if got := len(hub.History()); got != historySize {
		t.Errorf("history length = %d, want %d", got, historySize)
	}
}

func TestNewMessage_NilPayload(t *testing.T) {
	data, err := NewMessage(MsgSync, nil)
	if err != nil {
		t.Fatalf("NewMessage error: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if msg.Type != MsgSync || msg.Payload != nil {
		t.Errorf("msg = %+v", msg)
	}
}

func TestHandleWebSocketSendsHistoryAndEvents(t *testing.T) {
	hub := startHub(t)
	hub.AllowAnyOrigin = true
	hub.BroadcastError("earlier failure")

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() Message {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	}

	hist := read()
	if hist.Type != MsgHistory {
		t.Fatalf("first message = %q, want history", hist.Type)
	}
	var past []Message
	if err := json.Unmarshal(hist.Payload, &past); err != nil || len(past) != 1 || past[0].Type != MsgError {
		t.Errorf("history payload = %s (%v)", hist.Payload, err)
	}

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	plan, step := samplePlan()
	hub.StepStarted(plan, step)

	if msg := read(); msg.Type != MsgStepStarted {
		t.Errorf("event type = %q", msg.Type)
	}
}
