// Package process runs subprocesses in their own process group.
//
// Start launches a long-running command and returns a Handle that can be
// waited on or stopped; Stop sends SIGTERM to the whole group and escalates
// to SIGKILL after the command's grace period. LineWriter turns a child's
// output stream into one callback per line, which is how supervised output
// reaches the log.
package process
