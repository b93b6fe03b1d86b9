// Package launch prepares the runtime environment for the primepos server and
// hands control to it.
//
// A Launcher resolves the project root (the directory holding the launcher
// binary), loads <root>/.env into the process environment, makes the root the
// working directory and runs an Entry with an explicit snapshot of the
// resulting environment:
//
//	code, err := (&launch.Launcher{Entry: launch.ExecEntry{}}).Run(ctx)
//
// ExecEntry replaces the launcher with the server binary, so on success Run
// never returns. CommandEntry runs the server as a child instead.
package launch
