// primepos-launch prepares the primepos runtime environment and starts the
// server.
//
// Usage:
//
//	primepos-launch [flags] [-- server args...]
//
// The launcher loads <root>/.env, where root is the directory holding the
// launcher binary, changes into root and replaces itself with dist/primepos.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	apperrors "github.com/kbukum/primepos-supervisor/errors"
	"github.com/kbukum/primepos-supervisor/launch"
	"github.com/kbukum/primepos-supervisor/logger"
	"github.com/kbukum/primepos-supervisor/version"
)

const binaryName = "primepos-launch"

var (
	rootFlag     string
	envFileFlag  string
	entryFlag    string
	overrideFlag bool
	noExecFlag   bool
	versionFlag  bool
)

func main() {
	flag.StringVar(&rootFlag, "root", "", "Project root (default: directory of this binary)")
	flag.StringVar(&envFileFlag, "env-file", "", "Env file, relative to the root (default: .env)")
	flag.StringVar(&entryFlag, "entry", launch.DefaultEntryPath, "Server artifact, relative to the root")
	flag.BoolVar(&overrideFlag, "override", false, "Let env file values replace variables that are already set")
	flag.BoolVar(&noExecFlag, "no-exec", false, "Run the server as a child instead of replacing this process")
	flag.BoolVar(&versionFlag, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `%s - load .env and start the primepos server

Usage:
  %s [flags] [-- server args...]

Flags:
`, binaryName, binaryName)
		flag.PrintDefaults()
	}
	flag.Parse()

	if versionFlag {
		fmt.Println(version.Banner(binaryName))
		return
	}

	os.Exit(run())
}

func run() int {
	log := logger.NewFromEnv(binaryName).WithComponent("launch")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var entry launch.Entry = launch.ExecEntry{Path: entryFlag, Args: flag.Args()}
	if noExecFlag {
		entry = launch.CommandEntry{Path: entryFlag, Args: flag.Args()}
	}

	l := &launch.Launcher{
		Root:     rootFlag,
		EnvFile:  envFileFlag,
		Entry:    entry,
		Override: overrideFlag,
		Logger:   log,
	}

	code, err := l.Run(ctx)
	if err != nil {
		fields := logger.Fields(logger.FieldError, err.Error(), logger.FieldExitCode, code)
		if appErr, ok := apperrors.AsAppError(err); ok {
			fields["code"] = string(appErr.Code)
			for k, v := range appErr.Details {
				fields[k] = v
			}
		}
		log.Error("launch failed", fields)
	}
	return code
}
