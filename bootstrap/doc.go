// Package bootstrap orchestrates the lifecycle of a long-running binary.
//
// It validates typed configuration, initializes the logger, starts registered
// components in order, runs start/ready/stop hooks, blocks until SIGINT or
// SIGTERM and shuts components down in reverse order.
//
// # Quick Start
//
//	app, err := bootstrap.NewApp(eco)
//	if err != nil {
//	    return err
//	}
//	app.RegisterComponent(manager)
//	app.RegisterComponent(api)
//	app.OnReady(bootstrap.SystemdReady())
//	app.OnStop(bootstrap.SystemdStopping())
//	return app.Run(ctx)
package bootstrap
