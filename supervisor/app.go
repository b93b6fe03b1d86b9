package supervisor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/primepos-supervisor/config"
)

// Defaults applied by AppSpec.ApplyDefaults.
const (
	DefaultInstances     = 1
	DefaultMaxRestarts   = 16
	DefaultMinUptime     = time.Second
	DefaultKillTimeout   = 1600 * time.Millisecond
	DefaultListenTimeout = 8 * time.Second
)

// Variables set on every child so instances can tell each other apart.
const (
	EnvAppInstance = "NODE_APP_INSTANCE"
	EnvInstanceID  = "PM_INSTANCE_ID"
)

// AppSpec describes one supervised application.
type AppSpec struct {
	Name   string   `yaml:"name" mapstructure:"name" validate:"required,appname"`
	Script string   `yaml:"script" mapstructure:"script" validate:"required"`
	Args   []string `yaml:"args" mapstructure:"args"`
	// Cwd is the base for Script and EnvFile. Defaults to the directory of
	// the ecosystem file.
	Cwd     string            `yaml:"cwd" mapstructure:"cwd"`
	Env     map[string]string `yaml:"env" mapstructure:"env" validate:"dive,keys,envkey,endkeys"`
	EnvFile string            `yaml:"env_file" mapstructure:"env_file"`

	Instances   int   `yaml:"instances" mapstructure:"instances" validate:"min=1,max=64"`
	AutoRestart *bool `yaml:"autorestart" mapstructure:"autorestart"`
	// MaxRestarts is the number of consecutive unstable restarts after which
	// the instance is marked errored. Zero means DefaultMaxRestarts and a
	// negative value never gives up.
	MaxRestarts int `yaml:"max_restarts" mapstructure:"max_restarts" validate:"gte=-1"`
	// MinUptime is the uptime below which an exit counts as unstable. Like
	// every duration here it takes "10s" or a bare number of milliseconds.
	MinUptime              time.Duration `yaml:"min_uptime" mapstructure:"min_uptime" validate:"gte=0"`
	RestartDelay           time.Duration `yaml:"restart_delay" mapstructure:"restart_delay" validate:"gte=0"`
	ExpBackoffRestartDelay time.Duration `yaml:"exp_backoff_restart_delay" mapstructure:"exp_backoff_restart_delay" validate:"gte=0"`
	KillTimeout            time.Duration `yaml:"kill_timeout" mapstructure:"kill_timeout" validate:"gte=0"`
	StopExitCodes          []int         `yaml:"stop_exit_codes" mapstructure:"stop_exit_codes"`

	// ReadyPort, when set, is probed over TCP on 127.0.0.1 before an instance
	// is reported online.
	ReadyPort     int           `yaml:"ready_port" mapstructure:"ready_port" validate:"gte=0,lte=65535"`
	ListenTimeout time.Duration `yaml:"listen_timeout" mapstructure:"listen_timeout" validate:"gte=0"`
}

// ApplyDefaults fills unset fields. Relative Cwd values resolve against
// baseDir. Env keys are upper-cased because the config decoder lower-cases
// map keys.
func (a *AppSpec) ApplyDefaults(baseDir string) {
	switch {
	case a.Cwd == "":
		a.Cwd = baseDir
	case !filepath.IsAbs(a.Cwd):
		a.Cwd = filepath.Join(baseDir, a.Cwd)
	}
	if a.Instances == 0 {
		a.Instances = DefaultInstances
	}
	if a.AutoRestart == nil {
		on := true
		a.AutoRestart = &on
	}
	if a.MaxRestarts == 0 {
		a.MaxRestarts = DefaultMaxRestarts
	}
	if a.MinUptime == 0 {
		a.MinUptime = DefaultMinUptime
	}
	if a.KillTimeout == 0 {
		a.KillTimeout = DefaultKillTimeout
	}
	if a.ListenTimeout == 0 {
		a.ListenTimeout = DefaultListenTimeout
	}
	if len(a.Env) > 0 {
		env := make(map[string]string, len(a.Env))
		for k, v := range a.Env {
			env[strings.ToUpper(k)] = v
		}
		a.Env = env
	}
}

// Restarts reports whether the instance is relaunched after it exits.
func (a *AppSpec) Restarts() bool {
	return a.AutoRestart == nil || *a.AutoRestart
}

// ResolveScript returns the absolute path of the script.
func (a *AppSpec) ResolveScript() string {
	return a.resolve(a.Script)
}

// ResolveEnvFile returns the absolute path of the env file, or "" when the
// app has none.
func (a *AppSpec) ResolveEnvFile() string {
	if a.EnvFile == "" {
		return ""
	}
	return a.resolve(a.EnvFile)
}

func (a *AppSpec) resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(a.Cwd, path)
}

// Environ builds the environment of instance number instance. Later sources
// win: base, then the env file, then the env block, then the instance
// variables. A missing env file contributes nothing.
func (a *AppSpec) Environ(base []string, instance int) ([]string, error) {
	var fileVars map[string]string
	if path := a.ResolveEnvFile(); path != "" {
		vars, err := config.ReadEnvFile(path)
		if err != nil && !errors.Is(err, config.ErrEnvFileMissing) {
			return nil, fmt.Errorf("app %s: %w", a.Name, err)
		}
		fileVars = vars
	}
	id := strconv.Itoa(instance)
	return config.MergeEnviron(base, fileVars, a.Env, map[string]string{
		EnvAppInstance: id,
		EnvInstanceID:  id,
	}), nil
}

// Policy returns the restart policy of the app.
func (a *AppSpec) Policy() RestartPolicy {
	return RestartPolicy{
		AutoRestart:            a.Restarts(),
		MaxRestarts:            a.MaxRestarts,
		MinUptime:              a.MinUptime,
		RestartDelay:           a.RestartDelay,
		ExpBackoffRestartDelay: a.ExpBackoffRestartDelay,
		StopExitCodes:          a.StopExitCodes,
	}
}
