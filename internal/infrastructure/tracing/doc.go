/*
Package tracing provides lightweight request tracing for the HTTP API.

Each request gets a span whose ids travel in the X-Trace-ID and X-Span-ID
headers. The API client injects the same headers, so a snapctl invocation
and the server log lines it causes share one trace id. Ended spans are
buffered and logged by a single collector goroutine.

	tracer := tracing.New("sidesnap", logger)
	defer tracer.Close(ctx)

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "upload")
	span.Annotate(zap.Int("bytes", n))
	span.End(http.StatusCreated, err)
*/
package tracing
