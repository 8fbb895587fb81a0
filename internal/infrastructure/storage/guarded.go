package storage

import (
	"context"

	"github.com/GriffinCanCode/sidesnap/internal/domain/snapshot"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sidesnap/internal/infrastructure/resilience"
	"go.uber.org/zap"
)

// Guarded wraps a snapshot store with a circuit breaker. Missing snapshots
// are caller errors and do not count as failures. While the breaker is
// open every call fails with a StorageError wrapping
// resilience.ErrCircuitOpen.
type Guarded struct {
	next    snapshot.Store
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
}

// GuardSettings configures the breaker in front of the store
type GuardSettings struct {
	MaxFailures uint32
	Settings    resilience.Settings
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
}

// NewGuarded creates a breaker-protected store
func NewGuarded(next snapshot.Store, gs GuardSettings) *Guarded {
	logger := gs.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gs.Settings
	if gs.MaxFailures > 0 {
		settings.Trip = resilience.FailureThreshold(gs.MaxFailures)
	}
	settings.IsSuccessful = func(err error) bool {
		return err == nil || snapshot.IsNotFound(err) || snapshot.IsMalformed(err)
	}
	settings.OnStateChange = func(name string, from, to resilience.State) {
		logger.Warn("Storage circuit breaker changed state",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
		if gs.Metrics != nil {
			gs.Metrics.SetBreakerState(name, int(to))
		}
	}

	return &Guarded{
		next:    next,
		breaker: resilience.New("snapshot-store", settings),
		metrics: gs.Metrics,
	}
}

// State returns the breaker state
func (g *Guarded) State() resilience.State {
	return g.breaker.State()
}

func (g *Guarded) Get(ctx context.Context, id string) (*snapshot.Record, error) {
	return guard(g, "get", func() (*snapshot.Record, error) { return g.next.Get(ctx, id) })
}

func (g *Guarded) Put(ctx context.Context, id string, raw []byte, t int64) (*snapshot.Meta, error) {
	return guard(g, "put", func() (*snapshot.Meta, error) { return g.next.Put(ctx, id, raw, t) })
}

func (g *Guarded) List(ctx context.Context) ([]snapshot.Record, error) {
	return guard(g, "list", func() ([]snapshot.Record, error) { return g.next.List(ctx) })
}

func (g *Guarded) Delete(ctx context.Context, id string) error {
	_, err := guard(g, "delete", func() (struct{}, error) { return struct{}{}, g.next.Delete(ctx, id) })
	return err
}

func guard[T any](g *Guarded, op string, fn func() (T, error)) (T, error) {
	call := g.metrics.StartCall("storage", op)

	v, err := resilience.Call(g.breaker, fn)
	switch {
	case resilience.IsRejected(err):
		call.Finish("rejected")
		return v, &snapshot.StorageError{Op: op, Err: err}
	case err != nil && !snapshot.IsNotFound(err):
		if g.metrics != nil {
			g.metrics.RecordServiceError("storage", op, "storage")
		}
		call.Finish("error")
	default:
		call.Finish("success")
	}
	return v, err
}
