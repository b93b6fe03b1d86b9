package supervisor

import (
	"time"

	"github.com/kbukum/primepos-supervisor/sse"
)

// LogLine is one line of child output as streamed to log clients.
type LogLine struct {
	App      string    `json:"app"`
	Instance int       `json:"instance"`
	Stream   string    `json:"stream"`
	Line     string    `json:"line"`
	Time     time.Time `json:"time"`
}

// StateChange is streamed to log clients whenever an instance changes state.
type StateChange struct {
	App      string `json:"app"`
	Instance int    `json:"instance"`
	State    State  `json:"state"`
	PID      int    `json:"pid,omitempty"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// WithEvents publishes child output and state changes to b. Clients of app
// "primepos" are matched by the pattern "logs:primepos:*".
func WithEvents(b sse.Broadcaster) Option {
	return func(m *Manager) { m.events = b }
}

// logTopic is the client ID pattern that receives events for app.
func logTopic(app string) string {
	return "logs:" + app + ":*"
}

func (in *instance) publish(ev sse.Event) {
	if in.events == nil {
		return
	}
	in.events.Broadcast(logTopic(in.app.Name), ev)
}

func (in *instance) publishLine(stream, line string) {
	if in.events == nil {
		return
	}
	in.publish(sse.NewEvent(sse.EventTypeLog, LogLine{
		App:      in.app.Name,
		Instance: in.index,
		Stream:   stream,
		Line:     line,
		Time:     time.Now().UTC(),
	}))
}

func (in *instance) publishState(ch StateChange) {
	if in.events == nil {
		return
	}
	ch.App, ch.Instance = in.app.Name, in.index
	in.publish(sse.NewEvent(sse.EventTypeState, ch))
}
