package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/tracing"
)

// CORSConfig returns the browser access policy for the snapshot viewer.
// With no origins any origin may call the API, without credentials;
// listed origins get credentials and every other origin is refused.
// Trace headers are accepted and exposed so the viewer can report them.
func CORSConfig(origins ...string) cors.Config {
	c := cors.DefaultConfig()
	c.AddAllowHeaders("Accept", "Content-Encoding", tracing.TraceHeader, tracing.SpanHeader)
	c.AddExposeHeaders("ETag", tracing.TraceHeader, tracing.SpanHeader)

	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// CORS creates the CORS middleware for origins.
func CORS(origins ...string) gin.HandlerFunc {
	return cors.New(CORSConfig(origins...))
}
