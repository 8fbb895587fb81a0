package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAreIsolated(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.RecordSnapshotOp("upload", "success")

	assert.Equal(t, float64(1), testutil.ToFloat64(a.SnapshotOps.WithLabelValues("upload", "success")))
	assert.Equal(t, 0, testutil.CollectAndCount(b.SnapshotOps))
}

func TestTotals(t *testing.T) {
	m := NewMetrics()

	m.RecordHTTPRequest("GET", "/api/snapshots", "200", 100*time.Millisecond, 0, 10)
	m.RecordHTTPRequest("GET", "/api/snapshots/:id", "404", 300*time.Millisecond, 0, 10)
	m.RecordSnapshotOp("upload", "success")
	m.RecordSnapshotOp("upload", "error")
	m.RecordSnapshotOp("delete_node", "success")
	m.RecordSnapshotOp("parse", "success")
	m.SetSnapshotsStored(7)

	totals := m.GetTotals()
	assert.Equal(t, int64(2), totals.TotalRequests)
	assert.Equal(t, int64(1), totals.TotalErrors)
	assert.Equal(t, int64(1), totals.Uploads)
	assert.Equal(t, int64(1), totals.Edits)
	assert.Equal(t, int64(7), totals.StoredCount)
	assert.InDelta(t, 0.2, totals.AvgResponseSec, 1e-9)
	assert.Greater(t, totals.UptimeSeconds, 0.0)
}

func TestAddRecordsRemovedSkipsZero(t *testing.T) {
	m := NewMetrics()

	m.AddRecordsRemoved("promote", 0)
	assert.Equal(t, 0, testutil.CollectAndCount(m.RecordsRemoved))

	m.AddRecordsRemoved("subtree", 3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.RecordsRemoved.WithLabelValues("subtree")))
}

func TestCallTimer(t *testing.T) {
	m := NewMetrics()

	m.StartCall("storage", "put").Finish("success")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ServiceCalls.WithLabelValues("storage", "put", "success")))

	var disabled *Metrics
	assert.NotPanics(t, func() { disabled.StartCall("storage", "put").Finish("success") })
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	router := gin.New()
	router.Use(Middleware(m, "/metrics"))
	router.GET("/api/snapshots/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	for _, path := range []string{"/api/snapshots/a", "/api/snapshots/b", "/nowhere"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/snapshots/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.NotContains(t, body, `path="/metrics"`)
	assert.True(t, strings.Contains(body, "sidesnap_http_requests_total"))
	assert.True(t, strings.Contains(body, "sidesnap_uptime_seconds"))
}
