// Package util holds small generic helpers shared by the launcher and the
// supervisor.
package util
