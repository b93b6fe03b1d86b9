package supervisor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kbukum/primepos-supervisor/config"
	apperrors "github.com/kbukum/primepos-supervisor/errors"
	"github.com/kbukum/primepos-supervisor/observability"
	"github.com/kbukum/primepos-supervisor/server"
	"github.com/kbukum/primepos-supervisor/validation"
)

// ServiceName is the name the supervisor uses for config lookup and logging.
const ServiceName = "primepos-supervisor"

// Ecosystem is the supervisor configuration file.
type Ecosystem struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Apps      []AppSpec            `yaml:"apps" mapstructure:"apps" validate:"required,min=1,dive"`
	Server    server.Config        `yaml:"server" mapstructure:"server"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`

	// Path is the file the ecosystem was loaded from.
	Path string `yaml:"-" mapstructure:"-"`
}

// LoadEcosystem reads, defaults and validates the ecosystem file at path.
// Environment variables override file values the way the config loader binds
// them, e.g. SERVER_PORT for server.port.
func LoadEcosystem(path string) (*Ecosystem, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.NotFound("ecosystem file", abs).WithCause(err)
		}
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}

	eco := &Ecosystem{}
	err = config.LoadConfig(ServiceName, eco,
		config.WithConfigFile(abs),
		config.WithoutSearch(),
		config.WithDefault("name", ServiceName),
		config.WithDefault("server.enabled", true),
		config.WithDefault("server.host", server.DefaultHost),
		config.WithDefault("server.port", server.DefaultPort),
	)
	if err != nil {
		return nil, err
	}
	eco.Path = abs

	eco.ApplyDefaults()
	if err := eco.Validate(); err != nil {
		return nil, err
	}
	return eco, nil
}

// ApplyDefaults fills unset fields. App paths resolve against the directory
// of the ecosystem file, or the working directory when Path is unset.
func (e *Ecosystem) ApplyDefaults() {
	if e.Name == "" {
		e.Name = ServiceName
	}
	e.ServiceConfig.ApplyDefaults()

	baseDir := "."
	if e.Path != "" {
		baseDir = filepath.Dir(e.Path)
	}
	if abs, err := filepath.Abs(baseDir); err == nil {
		baseDir = abs
	}
	for i := range e.Apps {
		e.Apps[i].ApplyDefaults(baseDir)
	}

	e.Server.ApplyDefaults()
	e.Telemetry.ApplyDefaults()
}

// Validate checks the service settings, every app and the uniqueness of app
// names.
func (e *Ecosystem) Validate() error {
	if err := e.ServiceConfig.Validate(); err != nil {
		return apperrors.Validation(err.Error()).WithCause(err)
	}
	if err := validation.Validate(e); err != nil {
		return err
	}
	seen := make(map[string]bool, len(e.Apps))
	for _, app := range e.Apps {
		if seen[app.Name] {
			return apperrors.InvalidInput("apps", fmt.Sprintf("duplicate app name %q", app.Name))
		}
		seen[app.Name] = true
	}
	if err := e.Server.Validate(); err != nil {
		return apperrors.Validation(err.Error()).WithCause(err)
	}
	return nil
}

// minShutdownTimeout is the floor for ShutdownTimeout.
const minShutdownTimeout = 15 * time.Second

// ShutdownTimeout is how long a graceful shutdown may take: every app gets
// its kill timeout plus a margin for the SIGKILL to land, and never less
// than 15s.
func (e *Ecosystem) ShutdownTimeout() time.Duration {
	d := minShutdownTimeout
	for _, app := range e.Apps {
		d = max(d, app.KillTimeout+5*time.Second)
	}
	return d
}

// App returns the app called name.
func (e *Ecosystem) App(name string) (*AppSpec, error) {
	for i := range e.Apps {
		if e.Apps[i].Name == name {
			return &e.Apps[i], nil
		}
	}
	return nil, apperrors.NotFound("app", name)
}
