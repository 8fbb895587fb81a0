package tracing

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPMiddleware opens one span per request named after the matched route,
// continuing the caller's trace when X-Trace-ID is present. The ids are
// echoed in the response headers.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID, parentID := Extract(c.Request.Header)
		ctx := WithIDs(c.Request.Context(), traceID, parentID)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		span, ctx := tracer.StartSpan(ctx, c.Request.Method+" "+route)
		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, span.TraceID.String())
		c.Header(SpanHeader, span.SpanID.String())

		c.Next()

		span.Annotate(
			zap.String("http.method", c.Request.Method),
			zap.String("http.path", c.Request.URL.Path),
			zap.Int("http.status", c.Writer.Status()))

		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		span.End(c.Writer.Status(), err)
	}
}
