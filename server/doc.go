// Package server provides the supervisor's management HTTP server: Gin mounted
// on a ServeMux, served over HTTP/1.1 and h2c, and wrapped as a lifecycle
// component.
//
//	srv := server.New(cfg.Server, log)
//	srv.ApplyDefaults(cfg.Name, cfg.Version, registry.HealthAll)
//	supervisor.RegisterRoutes(srv.GinEngine(), manager, srv.ControlLimit())
//	registry.Register(server.NewComponent(srv))
//
// # Middleware
//
// Server-level middleware (server/middleware) wraps every route: recovery,
// request ID, CORS, body size limit and request logging. RateLimit and
// Observe are Gin middleware applied per route group.
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: component health aggregated into observability.ServiceHealth
//   - /ready: readiness probe
//   - /alive: liveness probe
//   - /info: version and build information
//   - /metrics: runtime memory and goroutine counts
package server
