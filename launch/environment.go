package launch

import (
	"os"

	"github.com/kbukum/primepos-supervisor/config"
)

// Environment is a read-only snapshot of the variables an entry starts with.
type Environment struct {
	// Root is the project root, also the working directory.
	Root string
	// EnvFile is the absolute path of the env file that was consulted.
	EnvFile string
	// FileLoaded reports whether EnvFile existed and was applied.
	FileLoaded bool
	// FileVars holds the variables defined in EnvFile, before precedence
	// against the inherited environment was applied.
	FileVars map[string]string

	vars map[string]string
}

// newEnvironment snapshots the current process environment.
func newEnvironment(root, envFile string, loaded bool, fileVars map[string]string) *Environment {
	if fileVars == nil {
		fileVars = map[string]string{}
	}
	return &Environment{
		Root:       root,
		EnvFile:    envFile,
		FileLoaded: loaded,
		FileVars:   fileVars,
		vars:       config.EnvironMap(os.Environ()),
	}
}

// NewEnvironment builds a snapshot from explicit variables. Entries under test
// use it in place of the process environment.
func NewEnvironment(root string, vars map[string]string) *Environment {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return &Environment{Root: root, FileVars: map[string]string{}, vars: copied}
}

// Lookup returns the value of key and whether it is set.
func (e *Environment) Lookup(key string) (string, bool) {
	v, ok := e.vars[key]
	return v, ok
}

// Get returns the value of key, or "" when unset.
func (e *Environment) Get(key string) string {
	return e.vars[key]
}

// Vars returns a copy of all variables.
func (e *Environment) Vars() map[string]string {
	out := make(map[string]string, len(e.vars))
	for k, v := range e.vars {
		out[k] = v
	}
	return out
}

// Environ returns the variables as a sorted KEY=VALUE list, the form exec expects.
func (e *Environment) Environ() []string {
	return config.MergeEnviron(nil, e.vars)
}
