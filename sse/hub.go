package sse

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/kbukum/primepos-supervisor/logger"
)

// ErrHubStopped is returned when registering with a stopped hub.
var ErrHubStopped = errors.New("sse: hub stopped")

const clientBuffer = 256

// Client is one connected event stream.
type Client struct {
	id       string
	metadata map[string]string
	events   chan Event
	dropped  atomic.Int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata adds a metadata key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) {
		c.metadata[key] = value
	}
}

// NewClient creates a client with a buffered event channel.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{
		id:       id,
		metadata: make(map[string]string),
		events:   make(chan Event, clientBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ID returns the client's unique identifier.
func (c *Client) ID() string { return c.id }

// Metadata returns all client metadata.
func (c *Client) Metadata() map[string]string { return c.metadata }

// Events returns the channel the client's events arrive on. It is closed
// when the client is unregistered or the hub stops.
func (c *Client) Events() <-chan Event { return c.events }

// Dropped returns how many events were lost because the client was slow.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// send queues ev without blocking. It must be called with the hub lock held
// so it never races with close.
func (c *Client) send(ev Event) bool {
	select {
	case c.events <- ev:
		return true
	default:
		if c.dropped.Add(1) == 1 {
			logger.Warn("sse client too slow, dropping events", logger.Fields("client_id", c.id))
		}
		return false
	}
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	stopped bool
}

var _ Broadcaster = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds a client. A client with the same ID replaces the old one,
// whose channel is closed.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return ErrHubStopped
	}
	if old, ok := h.clients[c.id]; ok && old != c {
		close(old.events)
	}
	h.clients[c.id] = c
	logger.Debug("sse client registered", logger.Fields("client_id", c.id, "total_clients", len(h.clients)))
	return nil
}

// Unregister removes a client and closes its channel. Unknown clients are
// ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		close(c.events)
		logger.Debug("sse client unregistered", logger.Fields("client_id", c.id, "total_clients", len(h.clients)))
	}
}

// Broadcast sends ev to every client whose ID matches the glob pattern.
func (h *Hub) Broadcast(pattern string, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for id, c := range h.clients {
		matched, err := filepath.Match(pattern, id)
		if err != nil {
			logger.Error("sse pattern match error", logger.Fields("pattern", pattern, logger.FieldError, err.Error()))
			return sent
		}
		if matched && c.send(ev) {
			sent++
		}
	}
	return sent
}

// Stop disconnects every client. Later registrations fail. Safe to call more
// than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.stopped = true
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientIDs returns the IDs of all connected clients.
func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}
