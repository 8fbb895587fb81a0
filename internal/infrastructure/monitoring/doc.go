/*
Package monitoring provides metrics collection for the snapshot server.

# Overview

Metrics are registered on a per-instance Prometheus registry and cover
HTTP traffic, service calls, snapshot operations and the shape of derived
views.

# Features

- HTTP request metrics (latency, throughput, size)
- Service call metrics (duration, errors)
- Snapshot operation counters (upload, parse, edits)
- Panels and groups per derived view
- Circuit breaker state
- Uptime

# Usage

	metrics := monitoring.NewMetrics()

	router.Use(monitoring.Middleware(metrics, "/metrics"))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	call := metrics.StartCall("storage", "put")
	// ... perform operation ...
	call.Finish("success")
*/
package monitoring
