package launch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"time"

	apperrors "github.com/kbukum/primepos-supervisor/errors"
	"github.com/kbukum/primepos-supervisor/process"
	"github.com/kbukum/primepos-supervisor/util"
)

// DefaultEntryPath is the server artifact, relative to the project root.
const DefaultEntryPath = "dist/primepos"

// Entry is the program the launcher hands control to. It returns the exit
// code the launcher should exit with.
type Entry interface {
	Run(ctx context.Context, env *Environment) (int, error)
}

// EntryFunc adapts an in-process function to Entry.
type EntryFunc func(ctx context.Context, env *Environment) (int, error)

// Run calls f.
func (f EntryFunc) Run(ctx context.Context, env *Environment) (int, error) {
	return f(ctx, env)
}

// ExecEntry replaces the current process image with the server binary.
type ExecEntry struct {
	// Path is the artifact path; relative paths resolve against the root.
	// Defaults to DefaultEntryPath.
	Path string
	// Args are passed after argv[0].
	Args []string

	exec func(argv0 string, argv []string, envv []string) error
}

// Run execs the artifact. On success it does not return.
func (e ExecEntry) Run(ctx context.Context, env *Environment) (int, error) {
	path, err := resolveArtifact(env.Root, e.Path)
	if err != nil {
		return 1, err
	}

	execFn := e.exec
	if execFn == nil {
		execFn = syscall.Exec
	}

	argv := append([]string{path}, e.Args...)
	if err := execFn(path, argv, env.Environ()); err != nil {
		return 1, apperrors.ExternalServiceError("entry", err).WithDetail("path", path)
	}
	return 0, nil
}

// CommandEntry runs the server binary as a child process and waits for it.
// Canceling the context stops the child with SIGTERM, then SIGKILL after
// GracePeriod.
type CommandEntry struct {
	Path        string
	Args        []string
	GracePeriod time.Duration

	// Stdin, Stdout and Stderr default to the launcher's own streams.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts the artifact and returns its exit status; death by signal N is
// reported as 128+N.
func (e CommandEntry) Run(ctx context.Context, env *Environment) (int, error) {
	path, err := resolveArtifact(env.Root, e.Path)
	if err != nil {
		return 1, err
	}

	cmd := process.Command{
		Binary:      path,
		Args:        e.Args,
		Dir:         env.Root,
		Env:         env.Environ(),
		Stdin:       e.Stdin,
		Stdout:      e.Stdout,
		Stderr:      e.Stderr,
		GracePeriod: e.GracePeriod,
	}
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	h, err := process.Start(ctx, cmd)
	if err != nil {
		return 1, apperrors.ExternalServiceError("entry", err).WithDetail("path", path)
	}

	exit := h.Wait()
	return exit.StatusCode(), nil
}

// resolveArtifact makes path absolute under root and checks that it is an
// executable regular file.
func resolveArtifact(root, path string) (string, error) {
	path = util.Coalesce(path, DefaultEntryPath)
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.NotFound("entry", path).WithCause(err)
		}
		return "", fmt.Errorf("stat entry %s: %w", path, err)
	}
	if info.IsDir() {
		return "", apperrors.InvalidInput("entry", "is a directory").WithDetail("path", path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return "", apperrors.InvalidInput("entry", "is not executable").WithDetail("path", path)
	}
	return path, nil
}
