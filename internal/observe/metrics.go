// Package observe provides application-wide observability primitives for
// leadscout: OpenTelemetry metrics, tracing helpers, trace-aware logging, and
// HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and scraped via
// the Prometheus exporter installed by [InitProvider]. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with their own [metric.MeterProvider] to
// avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all leadscout metrics.
const meterName = "github.com/MrWong99/leadscout"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms ---

	// PipelineDuration tracks query pipeline latency. Use with attribute:
	//   attribute.String("stage", ...) // load, filter, rank, render, total
	PipelineDuration metric.Float64Histogram

	// AnalysisDuration tracks how long external analysis runs take.
	AnalysisDuration metric.Float64Histogram

	// --- Counters ---

	// DialogSteps counts handled dialog events. Use with attributes:
	//   attribute.String("state", ...), attribute.String("outcome", ...)
	DialogSteps metric.Int64Counter

	// DialogsStarted counts filter dialogs started.
	DialogsStarted metric.Int64Counter

	// DialogsEnded counts filter dialogs that left the session store. Use
	// with attribute:
	//   attribute.String("reason", ...)
	DialogsEnded metric.Int64Counter

	// Queries counts query pipeline runs. Use with attributes:
	//   attribute.String("kind", ...), attribute.String("status", ...)
	Queries metric.Int64Counter

	// RecordsLoaded counts records read from the store.
	RecordsLoaded metric.Int64Counter

	// RecordsMatched counts records that survived filtering.
	RecordsMatched metric.Int64Counter

	// AnalysisRuns counts analysis runs. Use with attribute:
	//   attribute.String("status", ...)
	AnalysisRuns metric.Int64Counter

	// --- Error counters ---

	// StoreErrors counts record store failures. Use with attributes:
	//   attribute.String("backend", ...), attribute.String("op", ...)
	StoreErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveDialogs tracks the number of in-progress filter dialogs.
	ActiveDialogs metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for store
// loads and in-memory query stages.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// analysisBuckets covers scrape-and-score runs, which take minutes.
var analysisBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PipelineDuration, err = m.Float64Histogram("leadscout.pipeline.duration",
		metric.WithDescription("Latency of query pipeline stages."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnalysisDuration, err = m.Float64Histogram("leadscout.analysis.duration",
		metric.WithDescription("Duration of external analysis runs."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(analysisBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.DialogSteps, err = m.Int64Counter("leadscout.dialog.steps",
		metric.WithDescription("Total dialog events by state and outcome."),
	); err != nil {
		return nil, err
	}
	if met.DialogsStarted, err = m.Int64Counter("leadscout.dialog.started",
		metric.WithDescription("Total filter dialogs started."),
	); err != nil {
		return nil, err
	}
	if met.DialogsEnded, err = m.Int64Counter("leadscout.dialog.ended",
		metric.WithDescription("Total filter dialogs ended by reason."),
	); err != nil {
		return nil, err
	}
	if met.Queries, err = m.Int64Counter("leadscout.queries",
		metric.WithDescription("Total query pipeline runs by kind and status."),
	); err != nil {
		return nil, err
	}
	if met.RecordsLoaded, err = m.Int64Counter("leadscout.records.loaded",
		metric.WithDescription("Total records loaded from the record store."),
	); err != nil {
		return nil, err
	}
	if met.RecordsMatched, err = m.Int64Counter("leadscout.records.matched",
		metric.WithDescription("Total records matching the applied filters."),
	); err != nil {
		return nil, err
	}
	if met.AnalysisRuns, err = m.Int64Counter("leadscout.analysis.runs",
		metric.WithDescription("Total analysis runs by status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.StoreErrors, err = m.Int64Counter("leadscout.store.errors",
		metric.WithDescription("Total record store errors by backend and operation."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveDialogs, err = m.Int64UpDownCounter("leadscout.active_dialogs",
		metric.WithDescription("Number of in-progress filter dialogs."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("leadscout.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordDialogStep records one handled dialog event.
func (m *Metrics) RecordDialogStep(ctx context.Context, state, outcome string) {
	m.DialogSteps.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("state", state),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordDialogStarted counts a new dialog and raises the active gauge.
func (m *Metrics) RecordDialogStarted(ctx context.Context) {
	m.DialogsStarted.Add(ctx, 1)
	m.ActiveDialogs.Add(ctx, 1)
}

// RecordDialogEnded counts a finished dialog and lowers the active gauge.
func (m *Metrics) RecordDialogEnded(ctx context.Context, reason string) {
	m.DialogsEnded.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	m.ActiveDialogs.Add(ctx, -1)
}

// RecordStage records the latency of one pipeline stage.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	m.PipelineDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordQuery counts one pipeline run.
func (m *Metrics) RecordQuery(ctx context.Context, kind, status string) {
	m.Queries.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordStoreError counts a record store failure.
func (m *Metrics) RecordStoreError(ctx context.Context, backend, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("backend", backend),
			attribute.String("op", op),
		),
	)
}

// RecordAnalysisRun counts an analysis run and records its duration.
func (m *Metrics) RecordAnalysisRun(ctx context.Context, status string, d time.Duration) {
	m.AnalysisRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	m.AnalysisDuration.Record(ctx, d.Seconds())
}
