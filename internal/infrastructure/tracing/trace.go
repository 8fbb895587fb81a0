package tracing

import (
	"context"
	"net/http"
	"sync"
	"time"
	"unicode"

	"github.com/GriffinCanCode/sidesnap/internal/shared/id"
	"go.uber.org/zap"
)

// Propagation headers
const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

const (
	spanBuffer = 1000
	// maxHeaderID bounds ids accepted from callers before they reach logs
	maxHeaderID = 128
)

// Span is one timed operation in a trace. A span is owned by the goroutine
// that started it until End.
type Span struct {
	TraceID  id.TraceID
	SpanID   id.SpanID
	ParentID id.SpanID
	Name     string
	Start    time.Time
	Duration time.Duration
	Status   int
	Err      error

	attrs  []zap.Field
	tracer *Tracer
}

// Annotate attaches attributes logged with the span
func (s *Span) Annotate(fields ...zap.Field) {
	s.attrs = append(s.attrs, fields...)
}

// End records the outcome and hands the span to the collector. An error
// with no status counts as a 500.
func (s *Span) End(status int, err error) {
	s.Duration = time.Since(s.Start)
	s.Status = status
	s.Err = err
	if err != nil && status == 0 {
		s.Status = http.StatusInternalServerError
	}
	s.tracer.submit(s)
}

// Tracer logs finished spans from a single collector goroutine
type Tracer struct {
	service string
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
	spans  chan *Span
	done   chan struct{}
}

// New starts a tracer
func New(service string, logger *zap.Logger) *Tracer {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracer{
		service: service,
		logger:  logger.With(zap.String("trace_service", service)),
		spans:   make(chan *Span, spanBuffer),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan opens a span continuing the trace carried by ctx, or a new
// trace when there is none.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		traceID = id.NewTraceID()
	}
	span := &Span{
		TraceID:  traceID,
		SpanID:   id.NewSpanID(),
		ParentID: SpanIDFrom(ctx),
		Name:     name,
		Start:    time.Now(),
		tracer:   t,
	}
	return span, WithIDs(ctx, traceID, span.SpanID)
}

// submit queues a span. Spans are dropped once the tracer is closed or
// while the buffer is full.
func (t *Tracer) submit(s *Span) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return
	}
	select {
	case t.spans <- s:
	default:
		t.logger.Warn("Span buffer full, dropping span", spanIDs(s)...)
	}
}

func (t *Tracer) collect() {
	defer close(t.done)
	for s := range t.spans {
		t.log(s)
	}
}

func (t *Tracer) log(s *Span) {
	fields := append(spanIDs(s),
		zap.String("operation", s.Name),
		zap.Duration("duration", s.Duration),
		zap.Int("status", s.Status))
	if s.ParentID != "" {
		fields = append(fields, zap.String("parent_id", s.ParentID.String()))
	}
	fields = append(fields, s.attrs...)

	switch {
	case s.Err != nil:
		t.logger.Error("Span failed", append(fields, zap.Error(s.Err))...)
	case s.Status >= http.StatusInternalServerError:
		t.logger.Warn("Span completed", fields...)
	default:
		t.logger.Debug("Span completed", fields...)
	}
}

// Close stops accepting spans and waits for buffered spans to be logged,
// or for ctx to end. It is safe to call more than once.
func (t *Tracer) Close(ctx context.Context) error {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.spans)
	}
	t.mu.Unlock()

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func spanIDs(s *Span) []zap.Field {
	return []zap.Field{
		zap.String("trace_id", s.TraceID.String()),
		zap.String("span_id", s.SpanID.String()),
	}
}

// Extract reads trace context from HTTP headers. Values that are too long
// or contain control characters are ignored.
func Extract(h http.Header) (id.TraceID, id.SpanID) {
	return id.TraceID(headerID(h, TraceHeader)), id.SpanID(headerID(h, SpanHeader))
}

func headerID(h http.Header, key string) string {
	v := h.Get(key)
	if len(v) > maxHeaderID {
		return ""
	}
	for _, r := range v {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return ""
		}
	}
	return v
}

// Inject writes the trace context carried by ctx into HTTP headers
func Inject(ctx context.Context, h http.Header) {
	if traceID := TraceIDFrom(ctx); traceID != "" {
		h.Set(TraceHeader, traceID.String())
	}
	if spanID := SpanIDFrom(ctx); spanID != "" {
		h.Set(SpanHeader, spanID.String())
	}
}

type ctxKey int

const (
	traceKey ctxKey = iota
	spanKey
)

// WithIDs returns ctx carrying the given ids. Empty ids are not stored.
func WithIDs(ctx context.Context, traceID id.TraceID, spanID id.SpanID) context.Context {
	if traceID != "" {
		ctx = context.WithValue(ctx, traceKey, traceID)
	}
	if spanID != "" {
		ctx = context.WithValue(ctx, spanKey, spanID)
	}
	return ctx
}

// TraceIDFrom returns the trace id carried by ctx
func TraceIDFrom(ctx context.Context) id.TraceID {
	v, _ := ctx.Value(traceKey).(id.TraceID)
	return v
}

// SpanIDFrom returns the span id carried by ctx
func SpanIDFrom(ctx context.Context) id.SpanID {
	v, _ := ctx.Value(spanKey).(id.SpanID)
	return v
}

// Fields returns log fields for the trace carried by ctx
func Fields(ctx context.Context) []zap.Field {
	traceID := TraceIDFrom(ctx)
	if traceID == "" {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", traceID.String()),
		zap.String("span_id", SpanIDFrom(ctx).String()),
	}
}
