package leadstore

import (
	"context"
	"fmt"

	"github.com/MrWong99/leadscout/internal/observe"
	"github.com/MrWong99/leadscout/internal/resilience"
	"github.com/MrWong99/leadscout/pkg/lead"
)

// Resilient serves reads from the first healthy backend of a
// [resilience.FallbackGroup]. Every failed call is counted in
// [observe.Metrics.StoreErrors] under the backend name.
type Resilient struct {
	group   *resilience.FallbackGroup[Store]
	metrics *observe.Metrics
}

// Compile-time interface check.
var _ Store = (*Resilient)(nil)

// NewResilient wraps group. A nil metrics uses [observe.DefaultMetrics].
func NewResilient(group *resilience.FallbackGroup[Store], metrics *observe.Metrics) *Resilient {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Resilient{group: group, metrics: metrics}
}

// Breakers reports the breaker state of every backend.
func (r *Resilient) Breakers() map[string]resilience.State {
	return r.group.Breakers()
}

// Load returns the records of the first backend that answers.
func (r *Resilient) Load(ctx context.Context, processedOnly bool) ([]lead.Record, error) {
	return call(ctx, r, "load", func(s Store) ([]lead.Record, error) {
		return s.Load(ctx, processedOnly)
	})
}

// Regions returns the regions of the first backend that answers.
func (r *Resilient) Regions(ctx context.Context) ([]string, error) {
	return call(ctx, r, "regions", func(s Store) ([]string, error) { return s.Regions(ctx) })
}

// FuelTypes returns the fuel types of the first backend that answers.
func (r *Resilient) FuelTypes(ctx context.Context) ([]string, error) {
	return call(ctx, r, "fuel_types", func(s Store) ([]string, error) { return s.FuelTypes(ctx) })
}

// Ping succeeds when any backend is reachable.
func (r *Resilient) Ping(ctx context.Context) error {
	_, err := call(ctx, r, "ping", func(s Store) (struct{}, error) { return struct{}{}, s.Ping(ctx) })
	return err
}

func call[R any](ctx context.Context, r *Resilient, op string, fn func(Store) (R, error)) (R, error) {
	res, err := resilience.ExecuteWithResult(ctx, r.group, func(name string, s Store) (R, error) {
		v, err := fn(s)
		if err != nil {
			r.metrics.RecordStoreError(ctx, name, op)
		}
		return v, err
	})
	if err != nil {
		var zero R
		return zero, fmt.Errorf("leadstore: %s: %w", op, err)
	}
	return res, nil
}
