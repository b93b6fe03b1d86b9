// Package supervisor runs and watches the apps of an ecosystem file.
//
// Each app has one or more instances. An instance launches its script with
// the app's environment, logs every output line and relaunches the process
// when it exits, as the app's RestartPolicy allows:
//
//	eco, err := supervisor.LoadEcosystem("ecosystem.yml")
//	if err != nil {
//	    return err
//	}
//	m, err := supervisor.NewManager(eco.Apps)
//	if err != nil {
//	    return err
//	}
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	defer m.Stop(context.Background())
//
// An exit before MinUptime is unstable. After MaxRestarts consecutive
// unstable exits the instance is errored, with a CRASH_LOOP error in its
// status, and left alone until it is restarted through the Manager or the
// management API (RegisterRoutes). A negative MaxRestarts never gives up.
// RegisterLogStream streams output and state changes of a Manager created
// WithEvents.
package supervisor
