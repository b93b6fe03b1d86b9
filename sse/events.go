package sse

import "encoding/json"

// Event types.
const (
	// EventTypeConnected is sent once when a client connects.
	EventTypeConnected = "connected"
	EventTypeMessage   = "message"
	// EventTypeLog carries one line of child process output.
	EventTypeLog = "log"
	// EventTypeState carries an instance state change.
	EventTypeState = "state"
)

// Event is one server-sent event.
type Event struct {
	Type string
	Data []byte
}

// NewEvent returns an event whose data is v encoded as JSON. A value that
// cannot be encoded yields an event with data "null".
func NewEvent(eventType string, v any) Event {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte("null")
	}
	return Event{Type: eventType, Data: data}
}
