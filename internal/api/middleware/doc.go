// Package middleware provides the HTTP middleware stack of the snapshot API.
//
//   - CORS: origins from configuration, any origin when none are listed
//   - RateLimit: per-IP token bucket with idle client eviction and Retry-After
//   - RequestLogger: one zap line per request, tagged with trace ids
//   - Recovery: panic recovery with a JSON error body
//   - BodyLimit: request body cap for uploads
//
// Example Usage:
//
//	router.Use(middleware.Recovery(logger))
//	router.Use(middleware.CORS(cfg.CORS.Origins...))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
