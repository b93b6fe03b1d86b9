package supervisor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/primepos-supervisor/component"
	apperrors "github.com/kbukum/primepos-supervisor/errors"
	"github.com/kbukum/primepos-supervisor/logger"
	"github.com/kbukum/primepos-supervisor/observability"
	"github.com/kbukum/primepos-supervisor/sse"
)

const componentName = "supervisor"

var (
	_ component.Component   = (*Manager)(nil)
	_ component.Describable = (*Manager)(nil)
)

// Manager supervises the instances of every configured app.
type Manager struct {
	apps    []*AppSpec
	log     *logger.Logger
	metrics *observability.Metrics
	base    []string
	probe   probeFunc
	events  sse.Broadcaster

	// instances is fixed by NewManager and read without locking.
	instances map[string][]*instance

	// ctl serializes lifecycle operations; mu guards ctx and cancel only, so
	// status reads never wait behind a slow stop.
	ctl    sync.Mutex
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Child output is logged through it too.
func WithLogger(l *logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics sets the metric instruments.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithBaseEnv sets the environment every child inherits. Defaults to the
// supervisor's own environment.
func WithBaseEnv(environ []string) Option {
	return func(m *Manager) { m.base = environ }
}

// NewManager creates a manager for apps. Defaults must already be applied.
func NewManager(apps []AppSpec, opts ...Option) (*Manager, error) {
	m := &Manager{
		instances: make(map[string][]*instance, len(apps)),
		probe:     dialProbe,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Get(componentName)
	}
	if m.base == nil {
		m.base = os.Environ()
	}
	if m.metrics == nil {
		metrics, err := observability.NewMetrics(observability.Meter(componentName))
		if err != nil {
			return nil, fmt.Errorf("supervisor metrics: %w", err)
		}
		m.metrics = metrics
	}

	for i := range apps {
		app := &apps[i]
		if _, dup := m.instances[app.Name]; dup {
			return nil, apperrors.Conflict(fmt.Sprintf("app %q is defined twice", app.Name))
		}
		m.apps = append(m.apps, app)
		list := make([]*instance, app.Instances)
		for n := range list {
			list[n] = newInstance(app, n, m)
		}
		m.instances[app.Name] = list
	}
	return m, nil
}

// Name returns the component name.
func (m *Manager) Name() string { return componentName }

// Start launches every instance of every app and returns without waiting for
// them to come online. Instances outlive ctx; they end with Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.Lock()
	if m.ctx != nil {
		m.mu.Unlock()
		return apperrors.Conflict("supervisor already started")
	}
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	runCtx := m.ctx
	m.mu.Unlock()

	for _, app := range m.apps {
		if path := app.ResolveEnvFile(); path != "" {
			if _, err := os.Stat(path); err != nil {
				m.log.Warn("env file not readable, starting without it", logger.Fields(
					logger.FieldApp, app.Name,
					logger.FieldPath, path,
					logger.FieldError, err.Error(),
				))
			}
		}
		for _, in := range m.instances[app.Name] {
			in.start(runCtx)
		}
		m.log.Info("app started", logger.Fields(logger.FieldApp, app.Name, "instances", app.Instances))
	}
	return nil
}

// Stop terminates every instance. Each process gets SIGTERM and, after its
// kill timeout, SIGKILL. Stop returns early with ctx's error. After Stop the
// manager refuses Restart and StartApp.
func (m *Manager) Stop(ctx context.Context) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.mu.Lock()
	cancel := m.cancel
	m.ctx, m.cancel = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}

	var all []*instance
	for _, app := range m.apps {
		all = append(all, m.instances[app.Name]...)
	}
	err := stopAll(ctx, all)
	cancel()
	return err
}

// Restart stops and relaunches every instance of app name and clears its
// unstable exit count.
func (m *Manager) Restart(ctx context.Context, name string) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	list, err := m.lookup(name)
	if err != nil {
		return err
	}
	runCtx, err := m.runContext()
	if err != nil {
		return err
	}

	ctx, span := observability.StartSpan(ctx, observability.SpanRestart,
		trace.WithAttributes(attribute.String(observability.AttrApp, name)))
	defer span.End()

	if err := stopAll(ctx, list); err != nil {
		observability.SetSpanError(ctx, err)
		return err
	}
	for _, in := range list {
		in.mu.Lock()
		in.status.Restarts++
		in.mu.Unlock()
		m.metrics.RecordRestart(ctx, name, in.index, "request")
		in.start(runCtx)
	}
	m.log.Info("app restarted", logger.Fields(logger.FieldApp, name))
	return nil
}

// StopApp stops every instance of app name.
func (m *Manager) StopApp(ctx context.Context, name string) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	list, err := m.lookup(name)
	if err != nil {
		return err
	}
	if err := stopAll(ctx, list); err != nil {
		return err
	}
	m.log.Info("app stopped", logger.Fields(logger.FieldApp, name))
	return nil
}

// StartApp launches the instances of app name that are not running.
func (m *Manager) StartApp(ctx context.Context, name string) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	list, err := m.lookup(name)
	if err != nil {
		return err
	}
	runCtx, err := m.runContext()
	if err != nil {
		return err
	}
	for _, in := range list {
		in.start(runCtx)
	}
	m.log.Info("app started", logger.Fields(logger.FieldApp, name))
	return nil
}

// Status returns the state of every instance, in configuration order.
func (m *Manager) Status() []InstanceStatus {
	var out []InstanceStatus
	for _, app := range m.apps {
		for _, in := range m.instances[app.Name] {
			out = append(out, in.snapshot())
		}
	}
	return out
}

// AppStatus returns the state of the instances of app name.
func (m *Manager) AppStatus(name string) ([]InstanceStatus, error) {
	list, err := m.lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]InstanceStatus, 0, len(list))
	for _, in := range list {
		out = append(out, in.snapshot())
	}
	return out, nil
}

// Apps returns the supervised app definitions.
func (m *Manager) Apps() []AppSpec {
	out := make([]AppSpec, 0, len(m.apps))
	for _, app := range m.apps {
		out = append(out, *app)
	}
	return out
}

// Health is unhealthy when any instance is errored, healthy when all are
// online and degraded otherwise.
func (m *Manager) Health(ctx context.Context) component.Health {
	h := component.Health{Name: componentName, Status: component.StatusHealthy}
	var errored, pending []string
	for _, s := range m.Status() {
		id := fmt.Sprintf("%s#%d", s.App, s.Instance)
		switch s.State {
		case StateOnline:
		case StateErrored:
			if s.Error != nil {
				id += " (" + s.Error.Message + ")"
			}
			errored = append(errored, id)
		default:
			pending = append(pending, id+"="+string(s.State))
		}
	}
	switch {
	case len(errored) > 0:
		h.Status = component.StatusUnhealthy
		h.Message = "errored: " + strings.Join(errored, ", ")
	case len(pending) > 0:
		h.Status = component.StatusDegraded
		h.Message = strings.Join(pending, ", ")
	}
	return h
}

// Describe reports the manager in the startup summary.
func (m *Manager) Describe() component.Description {
	total := 0
	for _, app := range m.apps {
		total += app.Instances
	}
	return component.Description{
		Name:    "Process Manager",
		Type:    "supervisor",
		Details: fmt.Sprintf("apps=%d instances=%d", len(m.apps), total),
	}
}

// runContext returns the context instances run under, or SERVICE_UNAVAILABLE
// when the manager is not started.
func (m *Manager) runContext() (context.Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil, apperrors.ServiceUnavailable(componentName)
	}
	return m.ctx, nil
}

func (m *Manager) lookup(name string) ([]*instance, error) {
	list, ok := m.instances[name]
	if !ok {
		return nil, apperrors.NotFound("app", name)
	}
	return list, nil
}

// stopAll stops instances concurrently and waits for all of them.
func stopAll(ctx context.Context, list []*instance) error {
	var wg sync.WaitGroup
	errs := make([]error, len(list))
	for i, in := range list {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = in.stop(ctx)
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func withProbe(p probeFunc) Option {
	return func(m *Manager) { m.probe = p }
}
