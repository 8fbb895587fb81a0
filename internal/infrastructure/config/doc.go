// Package config provides 12-factor configuration management for the
// snapshot server.
//
// Values are layered: Default(), then an optional TOML or YAML file named
// by SIDESNAP_CONFIG, then environment variables. CLI flags in cmd/server
// override everything.
//
// Configuration Sections:
//   - Server: HTTP listen address and shutdown timeout
//   - Storage: SQLite database path and busy timeout
//   - Upload: maximum decompressed upload size
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//   - CORS: allowed browser origins
//   - Breaker: storage circuit breaker thresholds
//
// Example Usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//		return err
//	}
//	fmt.Printf("listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, SHUTDOWN_TIMEOUT_SECONDS
//   - DB_PATH, DB_BUSY_TIMEOUT_MS, UPLOAD_MAX_BYTES
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - CORS_ORIGINS, BREAKER_MAX_FAILURES, BREAKER_TIMEOUT_SECONDS
package config
