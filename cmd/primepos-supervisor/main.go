// primepos-supervisor keeps the apps of an ecosystem file running.
//
// Usage:
//
//	primepos-supervisor [run]          Supervise the apps (default)
//	primepos-supervisor status         Show instances of a running supervisor
//	primepos-supervisor restart <app>  Restart an app
//	primepos-supervisor stop <app>     Stop an app
//	primepos-supervisor start <app>    Start a stopped app
//	primepos-supervisor validate       Check the ecosystem file
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kbukum/primepos-supervisor/bootstrap"
	apperrors "github.com/kbukum/primepos-supervisor/errors"
	"github.com/kbukum/primepos-supervisor/logger"
	"github.com/kbukum/primepos-supervisor/observability"
	"github.com/kbukum/primepos-supervisor/server"
	"github.com/kbukum/primepos-supervisor/server/middleware"
	"github.com/kbukum/primepos-supervisor/sse"
	"github.com/kbukum/primepos-supervisor/supervisor"
	"github.com/kbukum/primepos-supervisor/version"
)

const binaryName = "primepos-supervisor"

var (
	configFlag  string
	apiFlag     string
	timeoutFlag time.Duration
	versionFlag bool
)

func main() {
	flag.StringVarP(&configFlag, "config", "c", "ecosystem.yml", "Ecosystem file")
	flag.StringVar(&apiFlag, "api", "", "Management API address, host:port (default: from the ecosystem file)")
	flag.DurationVar(&timeoutFlag, "timeout", 30*time.Second, "Timeout for API commands")
	flag.BoolVar(&versionFlag, "version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `%s - keep the primepos apps running

Usage:
  %s [run]          Supervise the apps (default)
  %s status         Show instances of a running supervisor
  %s restart <app>  Restart an app
  %s stop <app>     Stop an app
  %s start <app>    Start a stopped app
  %s validate       Check the ecosystem file

Flags:
`, binaryName, binaryName, binaryName, binaryName, binaryName, binaryName, binaryName)
		flag.PrintDefaults()
	}
	flag.Parse()

	if versionFlag {
		fmt.Println(version.Banner(binaryName))
		return
	}

	args := flag.Args()
	cmd := "run"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "run":
		cmdRun()
	case "status":
		cmdStatus()
	case "restart", "stop", "start":
		if len(args) == 0 {
			fatal("usage: %s %s <app>", binaryName, cmd)
		}
		cmdAction(cmd, args[0])
	case "validate":
		cmdValidate()
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func cmdRun() {
	eco, err := supervisor.LoadEcosystem(configFlag)
	if err != nil {
		fatal("%v", err)
	}
	if apiFlag != "" {
		host, port, err := splitAddr(apiFlag)
		if err != nil {
			fatal("--api: %v", err)
		}
		eco.Server.Host, eco.Server.Port, eco.Server.Enabled = host, port, true
	}

	app, err := bootstrap.NewApp(eco, bootstrap.WithGracefulTimeout(eco.ShutdownTimeout()))
	if err != nil {
		fatal("%v", err)
	}
	ver := version.GetShortVersion()
	app.Version = ver
	app.Summary = bootstrap.NewSummary(eco.Name, ver)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := observability.Setup(ctx, eco.Telemetry, eco.Name, ver, eco.Environment)
	if err != nil {
		fatal("telemetry: %v", err)
	}
	metrics, err := observability.NewMetrics(observability.Meter(supervisor.ServiceName))
	if err != nil {
		fatal("metrics: %v", err)
	}

	opts := []supervisor.Option{
		supervisor.WithLogger(app.Logger.WithComponent("supervisor")),
		supervisor.WithMetrics(metrics),
	}
	var logs *sse.Component
	if eco.Server.Enabled {
		logs = sse.NewComponent(supervisor.PathLogs)
		opts = append(opts, supervisor.WithEvents(logs.Hub()))
	}

	m, err := supervisor.NewManager(eco.Apps, opts...)
	if err != nil {
		fatal("%v", err)
	}
	if err := app.RegisterComponent(m); err != nil {
		fatal("%v", err)
	}
	for _, a := range eco.Apps {
		app.Summary.TrackProcess(a.Name, a.Script, a.Instances)
	}

	if eco.Server.Enabled {
		srv := server.New(eco.Server, app.Logger)
		srv.GinEngine().Use(middleware.Observe(eco.Name, metrics))
		srv.ApplyDefaults(eco.Name, ver, app.Components.HealthAll)
		supervisor.RegisterRoutes(srv.GinEngine(), m, srv.ControlLimit())
		supervisor.RegisterLogStream(srv.GinEngine(), m, logs.Hub())
		if err := app.RegisterComponent(server.NewComponent(srv)); err != nil {
			fatal("%v", err)
		}
		// Registered after the server so it stops first and open streams
		// do not hold up HTTP shutdown.
		if err := app.RegisterComponent(logs); err != nil {
			fatal("%v", err)
		}
	}

	// The watchdog starts with the components so a slow first launch does not
	// trip WatchdogSec; READY=1 waits for the ready check.
	app.OnStart(bootstrap.SystemdWatchdog(ctx))
	app.OnReady(bootstrap.SystemdReady())
	app.OnStop(bootstrap.SystemdStopping())

	runErr := app.Run(ctx)
	cancel()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := shutdownTelemetry(flushCtx); err != nil {
		app.Logger.Warn("telemetry shutdown failed", logger.Fields(logger.FieldError, err.Error()))
	}
	if runErr != nil {
		fatal("%v", runErr)
	}
}

func cmdStatus() {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	list, err := supervisor.NewClient(apiAddr()).Status(ctx)
	if err != nil {
		fatal("%v", describe(err))
	}
	printStatus(list)
}

func cmdAction(action, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	c := supervisor.NewClient(apiAddr())
	var (
		res *supervisor.ActionResult
		err error
	)
	switch action {
	case "restart":
		res, err = c.Restart(ctx, name)
	case "stop":
		res, err = c.Stop(ctx, name)
	default:
		res, err = c.Start(ctx, name)
	}
	if err != nil {
		fatal("%v", describe(err))
	}
	fmt.Printf("%s: %s requested\n", res.App, res.Action)
	printStatus(res.Instances)
}

func cmdValidate() {
	eco, err := supervisor.LoadEcosystem(configFlag)
	if err != nil {
		fatal("%v", describe(err))
	}
	fmt.Printf("%s: ok (%d apps)\n", eco.Path, len(eco.Apps))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tSCRIPT\tCWD\tINSTANCES\tMAX RESTARTS\tMIN UPTIME")
	for _, a := range eco.Apps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", a.Name, a.Script, a.Cwd, a.Instances, a.MaxRestarts, a.MinUptime)
	}
	_ = w.Flush()
}

func printStatus(list []supervisor.InstanceStatus) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "APP\tID\tSTATE\tPID\tRESTARTS\tUNSTABLE\tUPTIME\tLAST EXIT")
	for _, s := range list {
		pid := "-"
		if s.PID > 0 {
			pid = strconv.Itoa(s.PID)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%d\t%s\t%d\n",
			s.App, s.Instance, s.State, pid, s.Restarts, s.Unstable,
			s.Uptime().Round(time.Second), s.LastExitCode)
	}
	_ = w.Flush()
}

// apiAddr picks the API address: --api, then the ecosystem file, then the
// default.
func apiAddr() string {
	if apiFlag != "" {
		return apiFlag
	}
	if eco, err := supervisor.LoadEcosystem(configFlag); err == nil {
		return eco.Server.Address()
	}
	return net.JoinHostPort(server.DefaultHost, strconv.Itoa(server.DefaultPort))
}

func splitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	if host == "" {
		host = server.DefaultHost
	}
	return host, port, nil
}

func describe(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		switch appErr.Code {
		case apperrors.ErrCodeServiceUnavailable:
			return "supervisor is not reachable: " + appErr.Error()
		case apperrors.ErrCodeTimeout:
			return "supervisor did not answer in time (" + appErr.Message + "), raise --timeout"
		}
		return appErr.Message
	}
	return err.Error()
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", binaryName, fmt.Sprintf(format, args...))
	os.Exit(1)
}
