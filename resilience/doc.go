// Package resilience provides retry with exponential backoff and the backoff
// calculation on its own.
//
// The supervisor uses Backoff to space out restarts of a crashing process and
// Retry to poll a freshly started process until its port accepts connections:
//
//	err := resilience.RetryFunc(ctx, resilience.RetryConfig{
//	    MaxAttempts:    20,
//	    InitialBackoff: 100 * time.Millisecond,
//	}, func() error { return dial(addr) })
package resilience
