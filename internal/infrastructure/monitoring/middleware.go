package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware records request metrics under the matched route template.
// Paths in skip (typically the scrape endpoint) are not recorded.
func Middleware(metrics *Metrics, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if _, ok := skipped[route]; ok {
			return
		}
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordHTTPRequest(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			max(c.Request.ContentLength, 0),
			int64(max(c.Writer.Size(), 0)),
		)
	}
}

// CallTimer times one service call. A nil timer is a no-op.
type CallTimer struct {
	metrics *Metrics
	service string
	method  string
	start   time.Time
}

// StartCall begins timing a call. It returns nil when m is nil.
func (m *Metrics) StartCall(service, method string) *CallTimer {
	if m == nil {
		return nil
	}
	return &CallTimer{metrics: m, service: service, method: method, start: time.Now()}
}

// Finish records the call under status
func (t *CallTimer) Finish(status string) {
	if t == nil {
		return
	}
	t.metrics.RecordServiceCall(t.service, t.method, status, time.Since(t.start))
}
