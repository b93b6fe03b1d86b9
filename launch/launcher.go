package launch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kbukum/primepos-supervisor/config"
	"github.com/kbukum/primepos-supervisor/logger"
)

// EnvFileName is the env file looked up in the project root.
const EnvFileName = ".env"

// Launcher prepares the environment and runs an Entry.
type Launcher struct {
	// Root is the project root. Defaults to the directory of the running
	// executable.
	Root string
	// EnvFile overrides ResolveEnvFile(Root).
	EnvFile string
	// Entry receives control once the environment is ready.
	Entry Entry
	// Override lets env file values replace variables that are already set.
	Override bool
	// Logger defaults to logger.Get("launch").
	Logger *logger.Logger

	fs    config.FileSystem
	chdir func(dir string) error
}

// ResolveRoot returns the directory that holds the running executable, with
// symlinks resolved.
func ResolveRoot() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// ResolveEnvFile returns the env file path for root. It depends only on root,
// never on the current working directory.
func ResolveEnvFile(root string) string {
	return filepath.Join(root, EnvFileName)
}

// Run loads the env file, changes into the root and runs the entry. The
// returned code is what the process should exit with; it is non-zero
// whenever err is non-nil. Environment and working directory changes made
// before a failure are not undone.
func (l *Launcher) Run(ctx context.Context) (int, error) {
	log := l.Logger
	if log == nil {
		log = logger.Get("launch")
	}
	if l.Entry == nil {
		return 1, errors.New("launch: no entry configured")
	}

	root, err := l.root()
	if err != nil {
		return 1, err
	}

	env, err := l.loadEnv(root, log)
	if err != nil {
		return 1, err
	}

	if err := l.changeDir(root); err != nil {
		return 1, fmt.Errorf("change directory to %s: %w", root, err)
	}

	settings, err := DecodeSettings(env)
	if err != nil {
		return 1, err
	}
	if missing := settings.Missing(); len(missing) > 0 {
		log.Warn("server settings not set", logger.Fields("missing", missing))
	}
	log.Info("launching primepos", settings.LogFields())

	code, err := l.Entry.Run(ctx, env)
	if err != nil && code == 0 {
		code = 1
	}
	return code, err
}

func (l *Launcher) root() (string, error) {
	root := l.Root
	if root == "" {
		r, err := ResolveRoot()
		if err != nil {
			return "", err
		}
		root = r
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root %s: %w", root, err)
	}
	return abs, nil
}

// loadEnv applies the env file to the process environment and snapshots the
// result. A missing file is not an error.
func (l *Launcher) loadEnv(root string, log *logger.Logger) (*Environment, error) {
	path := l.EnvFile
	if path == "" {
		path = ResolveEnvFile(root)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	vars, err := config.ReadEnvFile(path)
	if errors.Is(err, config.ErrEnvFileMissing) {
		log.Debug("env file not found, continuing without it", logger.Fields(logger.FieldPath, path))
		return newEnvironment(root, path, false, nil), nil
	}
	if err != nil {
		return nil, err
	}

	fs := l.fs
	if fs == nil {
		fs = &config.RealFileSystem{}
	}
	if err := fs.LoadEnv(path, l.Override); err != nil {
		return nil, fmt.Errorf("load env file %s: %w", path, err)
	}
	log.Debug("env file loaded", logger.Fields(logger.FieldPath, path, "count", len(vars), "override", l.Override))

	return newEnvironment(root, path, true, vars), nil
}

func (l *Launcher) changeDir(dir string) error {
	if l.chdir != nil {
		return l.chdir(dir)
	}
	return os.Chdir(dir)
}
