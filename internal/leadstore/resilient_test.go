package leadstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/leadscout/internal/observe"
	"github.com/MrWong99/leadscout/internal/resilience"
	"github.com/MrWong99/leadscout/pkg/lead"
)

// failingStore fails every call with err.
type failingStore struct{ err error }

func (f failingStore) Load(context.Context, bool) ([]lead.Record, error) { return nil, f.err }
func (f failingStore) Regions(context.Context) ([]string, error)        { return nil, f.err }
func (f failingStore) FuelTypes(context.Context) ([]string, error)      { return nil, f.err }
func (f failingStore) Ping(context.Context) error                       { return f.err }

func newResilient(t *testing.T, primary, fallback Store) (*Resilient, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	group := resilience.NewFallbackGroup(primary, "postgres", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	if fallback != nil {
		group.AddFallback("snapshot", fallback)
	}
	return NewResilient(group, m), reader
}

func storeErrors(t *testing.T, reader *sdkmetric.ManualReader, backend string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "leadscout.store.errors" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				if v, ok := dp.Attributes.Value(attribute.Key("backend")); ok && v.AsString() == backend {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestResilient_FallsBackToSnapshot(t *testing.T) {
	t.Parallel()

	snap := NewSnapshotStore([]lead.Record{
		{ID: "1", Region: "Москва", Processed: true},
		{ID: "2", Region: "Казань"},
	})
	r, reader := newResilient(t, failingStore{err: errors.New("connection refused")}, snap)
	ctx := context.Background()

	got, err := r.Load(ctx, true)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("Load = %v, want the processed snapshot record", got)
	}
	if _, err := r.Regions(ctx); err != nil {
		t.Fatalf("Regions: %v", err)
	}

	if n := storeErrors(t, reader, "postgres"); n != 2 {
		t.Errorf("postgres store errors = %d, want 2", n)
	}
	if got := r.Breakers()["postgres"]; got != resilience.StateOpen {
		t.Errorf("postgres breaker = %v, want open", got)
	}

	// With the breaker open the primary is skipped and no new error is counted.
	if _, err := r.FuelTypes(ctx); err != nil {
		t.Fatalf("FuelTypes: %v", err)
	}
	if n := storeErrors(t, reader, "postgres"); n != 2 {
		t.Errorf("postgres store errors after open = %d, want 2", n)
	}
}

func TestResilient_AllBackendsFail(t *testing.T) {
	t.Parallel()

	errDown := errors.New("down")
	r, reader := newResilient(t, failingStore{err: errDown}, failingStore{err: errDown})

	err := r.Ping(context.Background())
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("Ping err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errDown) {
		t.Errorf("Ping err = %v, want it to wrap the backend error", err)
	}
	if n := storeErrors(t, reader, "snapshot"); n != 1 {
		t.Errorf("snapshot store errors = %d, want 1", n)
	}
}
