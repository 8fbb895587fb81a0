/*
Package client is a Go client for the snapshot HTTP API.

Requests go through a resty client whose transport is a go-retryablehttp
round tripper, so connection errors, 429s and 5xx answers are retried with
backoff. A circuit breaker sits above the retries: once MaxFailures calls
in a row end in a server failure, calls fail fast with
resilience.ErrCircuitOpen until the reset timeout passes. Trace ids found
in the request context are forwarded in X-Trace-ID / X-Span-ID.

# Usage

	c := client.New(client.DefaultOptions("http://localhost:3001"))
	meta, err := c.Upload(ctx, "sidebery-snapshot.json")
	view, err := c.Parsed(ctx, meta.ID)
*/
package client
