package sse

// Broadcaster sends events to the clients whose ID matches pattern. It
// reports how many clients accepted the event.
type Broadcaster interface {
	Broadcast(pattern string, ev Event) int
}
