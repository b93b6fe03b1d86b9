package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/primepos-supervisor/component"
)

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		if !ok {
			t.Fatal("client channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %q: %s", ev.Type, ev.Data)
	default:
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub()
	c := NewClient("logs:primepos:1")

	if err := hub.Register(c); err != nil {
		t.Fatal(err)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if _, ok := <-c.Events(); ok {
		t.Error("expected channel closed after unregister")
	}

	// Unregistering twice is harmless.
	hub.Unregister(c)
}

func TestHubRegisterReplacesSameID(t *testing.T) {
	hub := NewHub()
	old := NewClient("a")
	fresh := NewClient("a")
	_ = hub.Register(old)
	_ = hub.Register(fresh)

	if _, ok := <-old.Events(); ok {
		t.Error("expected replaced client to be closed")
	}
	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client, got %d", hub.ClientCount())
	}

	// The stale client must not remove its replacement.
	hub.Unregister(old)
	if hub.ClientCount() != 1 {
		t.Errorf("expected replacement to stay registered")
	}
}

func TestHubBroadcastPattern(t *testing.T) {
	hub := NewHub()
	pos1 := NewClient("logs:primepos:1")
	pos2 := NewClient("logs:primepos:2")
	worker := NewClient("logs:worker:1")
	for _, c := range []*Client{pos1, pos2, worker} {
		_ = hub.Register(c)
	}

	n := hub.Broadcast("logs:primepos:*", NewEvent(EventTypeLog, map[string]string{"line": "hi"}))
	if n != 2 {
		t.Fatalf("expected 2 recipients, got %d", n)
	}
	for _, c := range []*Client{pos1, pos2} {
		ev := receive(t, c)
		if ev.Type != EventTypeLog || string(ev.Data) != `{"line":"hi"}` {
			t.Errorf("unexpected event %q %s", ev.Type, ev.Data)
		}
	}
	assertNoEvent(t, worker)

	if n := hub.Broadcast("logs:nothing:*", NewEvent(EventTypeLog, nil)); n != 0 {
		t.Errorf("expected no recipients, got %d", n)
	}
}

func TestHubBroadcastBadPattern(t *testing.T) {
	hub := NewHub()
	_ = hub.Register(NewClient("a"))
	if n := hub.Broadcast("[", NewEvent(EventTypeLog, nil)); n != 0 {
		t.Errorf("expected malformed pattern to reach nobody, got %d", n)
	}
}

func TestHubSlowClientDropsEvents(t *testing.T) {
	hub := NewHub()
	c := NewClient("slow")
	_ = hub.Register(c)

	total := clientBuffer + 10
	done := make(chan int)
	go func() {
		sent := 0
		for i := 0; i < total; i++ {
			sent += hub.Broadcast("slow", NewEvent(EventTypeLog, i))
		}
		done <- sent
	}()

	select {
	case sent := <-done:
		if sent != clientBuffer {
			t.Errorf("expected %d delivered, got %d", clientBuffer, sent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow client")
	}
	if c.Dropped() != 10 {
		t.Errorf("expected 10 dropped, got %d", c.Dropped())
	}
}

func TestHubStop(t *testing.T) {
	hub := NewHub()
	c := NewClient("a")
	_ = hub.Register(c)

	hub.Stop()
	hub.Stop()

	if _, ok := <-c.Events(); ok {
		t.Error("expected channel closed after stop")
	}
	if err := hub.Register(NewClient("b")); !errors.Is(err, ErrHubStopped) {
		t.Errorf("expected ErrHubStopped, got %v", err)
	}
	if n := hub.Broadcast("*", NewEvent(EventTypeLog, nil)); n != 0 {
		t.Errorf("expected no recipients after stop, got %d", n)
	}
}

func TestHubClientIDs(t *testing.T) {
	hub := NewHub()
	_ = hub.Register(NewClient("b"))
	_ = hub.Register(NewClient("a", WithMetadata("app", "primepos")))

	ids := hub.ClientIDs()
	sort.Strings(ids)
	if strings.Join(ids, ",") != "a,b" {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestNewEventUnencodable(t *testing.T) {
	ev := NewEvent(EventTypeLog, make(chan int))
	if string(ev.Data) != "null" {
		t.Errorf("expected null data, got %s", ev.Data)
	}
}

func TestServeSSE(t *testing.T) {
	hub := NewHub()
	rr := httptest.NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/logs", http.NoBody).WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ServeSSE(hub, rr, req, "logs:primepos:x", WithMetadata("app", "primepos"))
	}()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if n := hub.Broadcast("logs:primepos:*", Event{Type: EventTypeLog, Data: []byte(`{"line":"tick"}`)}); n != 1 {
		t.Fatalf("expected 1 recipient, got %d", n)
	}
	// Stop disconnects the client, ending the stream.
	hub.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("ServeSSE did not return")
	}
	cancel()

	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"event: connected\n",
		`"client_id":"logs:primepos:x"`,
		"event: log\ndata: {\"line\":\"tick\"}\n\n",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestServeSSEStoppedHub(t *testing.T) {
	hub := NewHub()
	hub.Stop()
	rr := httptest.NewRecorder()
	ServeSSE(hub, rr, httptest.NewRequest(http.MethodGet, "/logs", http.NoBody), "a")
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}
}

func TestComponent(t *testing.T) {
	c := NewComponent("/processes/:name/logs")
	_ = c.Hub().Register(NewClient("a"))

	h := c.Health(context.Background())
	if h.Status != component.StatusHealthy || h.Message != "1 clients connected" {
		t.Errorf("unexpected health %+v", h)
	}
	if d := c.Describe(); d.Type != "sse" || d.Details != "GET /processes/:name/logs" {
		t.Errorf("unexpected description %+v", d)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if c.Hub().ClientCount() != 0 {
		t.Error("expected stop to disconnect clients")
	}
}
