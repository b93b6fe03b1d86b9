package supervisor

import (
	"context"
	"math"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/kbukum/primepos-supervisor/errors"
	"github.com/kbukum/primepos-supervisor/logger"
	"github.com/kbukum/primepos-supervisor/observability"
	"github.com/kbukum/primepos-supervisor/process"
	"github.com/kbukum/primepos-supervisor/resilience"
	"github.com/kbukum/primepos-supervisor/sse"
)

// probeFunc checks whether something accepts connections on port.
type probeFunc func(ctx context.Context, port int) error

func dialProbe(ctx context.Context, port int) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return err
	}
	return conn.Close()
}

// instance supervises one copy of an app: it launches the process, waits for
// it to exit and relaunches it as the restart policy allows.
type instance struct {
	app     *AppSpec
	index   int
	log     *logger.Logger
	metrics *observability.Metrics
	base    []string
	probe   probeFunc
	events  sse.Broadcaster

	mu       sync.Mutex
	status   InstanceStatus
	handle   *process.Handle
	stopping bool
	crash    *apperrors.AppError
	cancel   context.CancelFunc
	done     chan struct{}
}

func newInstance(app *AppSpec, index int, m *Manager) *instance {
	return &instance{
		app:     app,
		index:   index,
		log:     m.log,
		metrics: m.metrics,
		base:    m.base,
		probe:   m.probe,
		events:  m.events,
		status: InstanceStatus{
			App:      app.Name,
			Instance: index,
			State:    StateStopped,
		},
	}
}

// start runs the supervision loop in the background. It is a no-op while a
// loop is already running. A fresh start forgets earlier unstable exits.
func (in *instance) start(parent context.Context) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.done != nil {
		select {
		case <-in.done:
		default:
			return
		}
	}

	ctx, cancel := context.WithCancel(parent)
	in.cancel = cancel
	in.done = make(chan struct{})
	in.stopping = false
	in.status.State = StateLaunching
	in.status.Unstable = 0
	in.crash = nil

	go in.run(ctx, in.done)
}

// stop ends the loop, terminating the process if it runs, and waits until
// the loop has returned or ctx is done.
func (in *instance) stop(ctx context.Context) error {
	in.mu.Lock()
	if in.done == nil {
		in.mu.Unlock()
		return nil
	}
	in.stopping = true
	if in.status.running() {
		in.status.State = StateStopping
	}
	cancel, done := in.cancel, in.done
	in.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	in.mu.Lock()
	in.status.State = StateStopped
	in.mu.Unlock()
	return nil
}

func (in *instance) snapshot() InstanceStatus {
	in.mu.Lock()
	defer in.mu.Unlock()
	s := in.status
	if s.running() && !s.StartedAt.IsZero() {
		s.UptimeMs = time.Since(s.StartedAt).Milliseconds()
	}
	if in.crash != nil {
		body := in.crash.ToResponse().Error
		s.Error = &body
	}
	return s
}

func (in *instance) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	policy := in.app.Policy()

	for {
		exit := in.launch(ctx)

		in.mu.Lock()
		st := RunState{Unstable: in.status.Unstable, StopRequested: in.stopping || ctx.Err() != nil}
		in.mu.Unlock()

		d := policy.Decide(exit, st)
		in.settle(ctx, exit, d)
		if !d.Restart {
			return
		}

		if err := resilience.Sleep(ctx, d.Delay); err != nil {
			in.setState(StateStopped)
			return
		}
	}
}

// launch starts the process once and blocks until it exits. A process that
// cannot be started is reported as an immediate exit with code -1.
func (in *instance) launch(ctx context.Context) process.Exit {
	runID := uuid.NewString()
	ctx = logger.ContextWithApp(ctx, in.app.Name, in.index)
	ctx = logger.ContextWithRunID(ctx, runID)
	log := in.log.WithContext(ctx)

	ctx, span := observability.StartSpan(ctx, observability.SpanLaunch, trace.WithAttributes(
		attribute.String(observability.AttrApp, in.app.Name),
		attribute.Int(observability.AttrInstance, in.index),
		attribute.String(observability.AttrRunID, runID),
	))
	defer span.End()

	in.mu.Lock()
	in.status.RunID = runID
	in.status.PID = 0
	in.status.StartedAt = time.Time{}
	in.mu.Unlock()

	env, err := in.app.Environ(in.base, in.index)
	if err != nil {
		log.Error("cannot build environment", logger.ErrorFields("environ", err))
		observability.SetSpanError(ctx, err)
		return process.Exit{Code: -1, Err: err}
	}

	stdout := process.NewLineWriter(func(line string) {
		log.Info(line, logger.Fields(logger.FieldStream, "stdout"))
		in.publishLine("stdout", line)
	})
	stderr := process.NewLineWriter(func(line string) {
		log.Error(line, logger.Fields(logger.FieldStream, "stderr"))
		in.publishLine("stderr", line)
	})

	script := in.app.ResolveScript()
	h, err := process.Start(ctx, process.Command{
		Binary:      script,
		Args:        in.app.Args,
		Dir:         in.app.Cwd,
		Env:         env,
		Stdout:      stdout,
		Stderr:      stderr,
		GracePeriod: in.app.KillTimeout,
	})
	if err != nil {
		log.Error("process failed to start", logger.Fields(logger.FieldPath, script, logger.FieldError, err.Error()))
		observability.SetSpanError(ctx, err)
		return process.Exit{Code: -1, Err: err}
	}

	in.mu.Lock()
	in.handle = h
	in.status.PID = h.Pid()
	in.status.StartedAt = h.StartedAt()
	in.mu.Unlock()

	in.metrics.RecordStart(ctx, in.app.Name, in.index)
	in.publishState(StateChange{State: StateLaunching, PID: h.Pid()})
	observability.SetSpanAttribute(ctx, observability.AttrPID, h.Pid())
	log.Info("process started", logger.Fields(logger.FieldPID, h.Pid(), logger.FieldPath, script))

	ready := make(chan struct{})
	go func() {
		defer close(ready)
		in.awaitReady(ctx, h, log)
	}()

	exit := h.Wait()
	stdout.Flush()
	stderr.Flush()
	<-ready

	in.mu.Lock()
	in.handle = nil
	wasOnline := in.status.State == StateOnline
	stopping := in.stopping
	in.mu.Unlock()

	if wasOnline {
		in.metrics.RecordOnline(ctx, in.app.Name, -1)
	}
	in.metrics.RecordExit(ctx, in.app.Name, in.index, exit.StatusCode(), exit.Uptime)
	observability.SetSpanAttribute(ctx, observability.AttrExitCode, exit.StatusCode())

	fields := logger.Fields(
		logger.FieldPID, h.Pid(),
		logger.FieldExitCode, exit.StatusCode(),
		logger.FieldUptime, exit.Uptime.String(),
	)
	if exit.Signal != "" {
		fields["signal"] = exit.Signal
	}
	if exit.Success() || stopping {
		log.Info("process exited", fields)
	} else {
		log.Warn("process exited", fields)
		observability.SetSpanError(ctx, exit.Err)
	}
	return exit
}

// awaitReady marks the instance online, after a successful TCP probe when the
// app has a ReadyPort. A probe that times out still marks it online.
func (in *instance) awaitReady(ctx context.Context, h *process.Handle, log *logger.Logger) {
	if in.app.ReadyPort == 0 {
		in.markOnline(ctx, h, log)
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, in.app.ListenTimeout)
	defer cancel()
	go func() {
		select {
		case <-h.Done():
			cancel()
		case <-probeCtx.Done():
		}
	}()

	err := resilience.RetryFunc(probeCtx, resilience.RetryConfig{
		MaxAttempts:    math.MaxInt32,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  1.5,
	}, func() error {
		return in.probe(probeCtx, in.app.ReadyPort)
	})

	select {
	case <-h.Done():
		return
	default:
	}
	if err != nil {
		log.Warn("readiness probe did not succeed, marking online", logger.Fields(
			"port", in.app.ReadyPort,
			"listen_timeout", in.app.ListenTimeout.String(),
		))
	}
	in.markOnline(ctx, h, log)
}

func (in *instance) markOnline(ctx context.Context, h *process.Handle, log *logger.Logger) {
	in.mu.Lock()
	if in.handle != h || in.status.State != StateLaunching {
		in.mu.Unlock()
		return
	}
	in.status.State = StateOnline
	in.mu.Unlock()

	in.metrics.RecordOnline(ctx, in.app.Name, 1)
	in.publishState(StateChange{State: StateOnline, PID: h.Pid()})
	log.Info("instance online", logger.Fields(logger.FieldPID, h.Pid()))
}

// settle records an exit and the policy decision for it.
func (in *instance) settle(ctx context.Context, exit process.Exit, d Decision) {
	in.mu.Lock()
	in.status.LastExitCode = exit.StatusCode()
	in.status.Unstable = d.Unstable
	in.status.PID = 0
	in.status.State = d.State
	if d.Restart {
		in.status.Restarts++
	}
	if d.CrashLoop {
		in.crash = apperrors.CrashLoop(in.app.Name, d.Unstable)
	}
	in.mu.Unlock()

	code := exit.StatusCode()
	in.publishState(StateChange{State: d.State, ExitCode: &code, Reason: d.Reason})

	ctx = logger.ContextWithApp(ctx, in.app.Name, in.index)
	log := in.log.WithContext(ctx)
	fields := logger.Fields(
		logger.FieldState, string(d.State),
		"reason", d.Reason,
		"unstable_restarts", d.Unstable,
	)

	switch {
	case d.CrashLoop:
		in.metrics.RecordCrashLoop(ctx, in.app.Name, in.index)
		fields[logger.FieldExitCode] = exit.StatusCode()
		log.Error("too many unstable restarts, giving up", fields)
	case d.Restart:
		in.metrics.RecordRestart(ctx, in.app.Name, in.index, d.Reason)
		fields["delay"] = d.Delay.String()
		log.Info("restarting", fields)
	default:
		log.Info("not restarting", fields)
	}
}

func (in *instance) setState(s State) {
	in.mu.Lock()
	in.status.State = s
	in.mu.Unlock()
}
