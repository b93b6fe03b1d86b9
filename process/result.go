package process

import (
	"syscall"
	"time"
)

// Exit describes how a long-running process ended.
type Exit struct {
	// Code is the exit status, or -1 when the process died from a signal.
	Code int
	// Signal names the terminating signal, if any.
	Signal string
	// Uptime is the time between start and exit.
	Uptime time.Duration
	// Err is the error reported by Wait, nil for a zero exit status.
	Err error

	signal syscall.Signal
}

// Success reports whether the process exited with status zero.
func (e Exit) Success() bool {
	return e.Code == 0 && e.Signal == ""
}

// StatusCode is the code a shell would report: Code for a normal exit and
// 128+N for death by signal N.
func (e Exit) StatusCode() int {
	if e.signal != 0 {
		return 128 + int(e.signal)
	}
	return e.Code
}
