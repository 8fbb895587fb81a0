package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sidesnap/internal/domain/snapshot"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/tracing"
)

// timestampLayout renders times the way browsers print Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SnapshotService is the part of snapshot.Service the handlers use
type SnapshotService interface {
	Upload(ctx context.Context, body []byte) (*snapshot.Meta, error)
	List(ctx context.Context) ([]snapshot.Meta, error)
	Raw(ctx context.Context, id string) (*snapshot.Record, error)
	Parsed(ctx context.Context, id string) (*snapshot.View, error)
	Replace(ctx context.Context, id string, raw []byte, captured *int64) (*snapshot.Meta, error)
	Delete(ctx context.Context, id string) error
	DeletePanel(ctx context.Context, id, panelID string) (bool, error)
	DeleteNode(ctx context.Context, id string, addr snapshot.NodeAddress, subtree bool) (*snapshot.View, error)
}

// Pinger reports whether the backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers contains HTTP request handlers
type Handlers struct {
	snapshots SnapshotService
	store     Pinger
	metrics   *monitoring.Metrics
	logger    *zap.Logger
	maxUpload int64
	now       func() time.Time
}

// Option configures Handlers
type Option func(*Handlers)

// WithHealthCheck makes /health ping the store
func WithHealthCheck(p Pinger) Option {
	return func(h *Handlers) { h.store = p }
}

// WithMetrics enables the JSON stats endpoint
func WithMetrics(m *monitoring.Metrics) Option {
	return func(h *Handlers) { h.metrics = m }
}

// WithMaxUpload bounds request bodies on upload routes
func WithMaxUpload(n int64) Option {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUpload = n
		}
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(svc SnapshotService, logger *zap.Logger, opts ...Option) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handlers{
		snapshots: svc,
		logger:    logger,
		maxUpload: snapshot.DefaultMaxUploadBytes,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Root returns the service banner
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "sidesnap",
		"status":  "running",
	})
}

// Health reports liveness, and store reachability when configured
func (h *Handlers) Health(c *gin.Context) {
	stamp := h.now().UTC().Format(timestampLayout)
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			h.logger.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "degraded",
				"timestamp": stamp,
				"error":     err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": stamp,
	})
}

// Stats returns running totals from the metrics collector
func (h *Handlers) Stats(c *gin.Context) {
	if h.metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, h.metrics.GetTotals())
}

// fail maps a service error onto a status code and JSON body. Unexpected
// errors keep the action in "error" and the cause in "detail".
func (h *Handlers) fail(c *gin.Context, action string, err error) {
	_ = c.Error(err)

	var tooLarge *http.MaxBytesError
	switch {
	case snapshot.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case snapshot.IsMalformed(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &tooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, resilience.ErrCircuitOpen):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage temporarily unavailable"})
	default:
		h.logger.Error(action,
			append([]zap.Field{zap.Error(err)}, tracing.Fields(c.Request.Context())...)...)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  action,
			"detail": err.Error(),
		})
	}
}
