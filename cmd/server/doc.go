// Package main is the entry point for the sidesnap HTTP server.
//
// The server stores sidebar snapshot JSON files in SQLite and serves a
// derived panel/group/tree view of each one, plus edits that remove panels
// or single tabs.
//
// Configuration:
//   - Defaults
//   - Optional TOML or YAML file (--config or SIDESNAP_CONFIG)
//   - Environment variables (12-factor)
//   - CLI flags (override everything)
//
// Usage:
//
//	# Production mode
//	./server --port 3001 --db /var/lib/sidesnap/snapshots.db
//
//	# Development mode (colored logs, debug level)
//	./server --dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
