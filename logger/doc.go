// Package logger provides structured logging backed by zerolog.
//
// It supports console and JSON output, level configuration and
// component-scoped loggers. Supervised process output flows through the same
// logger with app, instance and stream fields attached.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("supervisor")
//	log.Info("instance online", logger.Fields("app", "primepos", "pid", 4242))
package logger
