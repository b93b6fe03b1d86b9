package sse

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/primepos-supervisor/logger"
)

// KeepAliveInterval is how often an idle stream gets a comment line. It stays
// below common proxy idle timeouts.
var KeepAliveInterval = 30 * time.Second

// ServeSSE registers a client with hub and streams its events to w until the
// request ends or the hub drops the client.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, opts ...ClientOption) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("sse write deadline not cleared", logger.Fields("client_id", clientID, logger.FieldError, err.Error()))
	}

	client := NewClient(clientID, opts...)
	if err := hub.Register(client); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	writeEvent(w, NewEvent(EventTypeConnected, map[string]any{
		"client_id": clientID,
		"metadata":  client.Metadata(),
	}))
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events():
			if !ok {
				return
			}
			writeEvent(w, ev)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) {
	if ev.Type != "" && ev.Type != EventTypeMessage {
		_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", ev.Data)
}
