// Package errors provides the structured error type shared by the launcher,
// the supervisor and its management API. Errors carry a machine-readable code,
// an HTTP status for the API and retryable detection.
package errors
