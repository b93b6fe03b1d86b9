package supervisor

import (
	"time"

	apperrors "github.com/kbukum/primepos-supervisor/errors"
)

// InstanceStatus is a point-in-time view of one instance.
type InstanceStatus struct {
	App      string `json:"app"`
	Instance int    `json:"instance"`
	State    State  `json:"state"`
	// RunID identifies the current or last launch.
	RunID string `json:"run_id,omitempty"`
	PID   int    `json:"pid,omitempty"`
	// Restarts counts every relaunch, automatic or requested.
	Restarts int `json:"restarts"`
	// Unstable counts consecutive exits before min_uptime.
	Unstable     int       `json:"unstable_restarts"`
	LastExitCode int       `json:"last_exit_code"`
	StartedAt    time.Time `json:"started_at,omitzero"`
	UptimeMs     int64     `json:"uptime_ms"`
	// Error explains an errored instance.
	Error *apperrors.ErrorBody `json:"error,omitempty"`
}

// Uptime returns how long the current process has been running.
func (s InstanceStatus) Uptime() time.Duration {
	return time.Duration(s.UptimeMs) * time.Millisecond
}

func (s *InstanceStatus) running() bool {
	return s.State == StateLaunching || s.State == StateOnline || s.State == StateStopping
}
