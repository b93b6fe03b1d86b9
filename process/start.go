package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// ErrNotRunning is returned when signalling a process that already exited.
var ErrNotRunning = errors.New("process: not running")

// Handle is a running subprocess started with Start.
type Handle struct {
	cmd     *exec.Cmd
	grace   time.Duration
	started time.Time

	done chan struct{}
	exit Exit

	stopOnce sync.Once
}

// Start launches cmd in its own process group and returns without waiting.
// Canceling ctx stops the process the same way Stop does.
func Start(ctx context.Context, cmd Command) (*Handle, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}

	c := exec.Command(cmd.Binary, cmd.Args...) //nolint:gosec // dynamic args are the purpose of this package
	configure(c, cmd)
	// Bounds how long Wait blocks on output pipes held open by grandchildren.
	c.WaitDelay = cmd.gracePeriod()

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", cmd.Binary, err)
	}

	h := &Handle{
		cmd:     c,
		grace:   cmd.gracePeriod(),
		started: time.Now(),
		done:    make(chan struct{}),
	}

	go h.wait()
	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-h.done:
		}
	}()

	return h, nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()
	exit := Exit{
		Code:   h.cmd.ProcessState.ExitCode(),
		Uptime: time.Since(h.started),
		Err:    err,
	}
	if ws, ok := h.cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		exit.signal = ws.Signal()
		exit.Signal = exit.signal.String()
	}
	h.exit = exit
	close(h.done)
}

// Pid returns the process id, which is also the process group id.
func (h *Handle) Pid() int {
	return h.cmd.Process.Pid
}

// StartedAt returns when the process was started.
func (h *Handle) StartedAt() time.Time {
	return h.started
}

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the process exits and reports how it ended.
func (h *Handle) Wait() Exit {
	<-h.done
	return h.exit
}

// Signal delivers sig to the whole process group.
func (h *Handle) Signal(sig syscall.Signal) error {
	select {
	case <-h.done:
		return ErrNotRunning
	default:
	}
	err := syscall.Kill(-h.cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return ErrNotRunning
	}
	return err
}

// Stop sends SIGTERM to the process group and SIGKILL if it is still alive
// after the grace period. It returns once the process has exited.
func (h *Handle) Stop() Exit {
	h.stopOnce.Do(func() {
		if err := h.Signal(syscall.SIGTERM); err != nil {
			return
		}
		timer := time.NewTimer(h.grace)
		defer timer.Stop()
		select {
		case <-h.done:
		case <-timer.C:
			_ = h.Signal(syscall.SIGKILL)
		}
	})
	return h.Wait()
}

// configure applies the Command settings to c.
func configure(c *exec.Cmd, cmd Command) {
	c.Dir = cmd.Dir
	c.Env = cmd.Env
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr
	// Own process group so the whole tree can be signalled.
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
