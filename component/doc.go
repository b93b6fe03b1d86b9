// Package component defines the lifecycle contract shared by the long-lived
// parts of the supervisor: the process manager and the management API.
//
// A Registry starts components in registration order, stops them in reverse
// order and aggregates their health.
//
// # Interfaces
//
//   - Component: lifecycle and health (Start/Stop/Health)
//   - Describable: one-line description for the startup summary
//   - RouteProvider: HTTP routes for the startup summary
package component
