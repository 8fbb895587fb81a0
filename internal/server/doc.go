// Package server assembles the snapshot API: configuration, logger,
// metrics, tracer, SQLite store behind a circuit breaker, the snapshot
// service and the gin router with its middleware stack.
package server
