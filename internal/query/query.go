// Package query runs the load → filter → rank → format pipeline that turns
// finished filter criteria into chat-ready text chunks.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/leadscout/internal/filter"
	"github.com/MrWong99/leadscout/internal/observe"
	"github.com/MrWong99/leadscout/internal/present"
	"github.com/MrWong99/leadscout/internal/rank"
	"github.com/MrWong99/leadscout/pkg/lead"
)

// ErrDataUnavailable is returned when the record store fails or holds no
// records at all.
var ErrDataUnavailable = errors.New("query: no records available")

// PipelineError reports an unexpected failure inside a pipeline stage,
// including a recovered panic.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("query: %s stage failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Loader is the part of a record store the pipeline reads from.
type Loader interface {
	Load(ctx context.Context, processedOnly bool) ([]lead.Record, error)
}

// Result is the outcome of one pipeline run.
type Result struct {
	// Blocks are the rendered chunks, each within the configured chunk size.
	Blocks []string
	// Total is the number of records that matched.
	Total int
	// Shown is the number of records rendered.
	Shown int
}

// Config configures a [Pipeline].
type Config struct {
	Store Loader

	// IncludeUnprocessed also loads records the analysis has not scored.
	IncludeUnprocessed bool

	// Limit is the number of rendered records. Default: [present.DefaultLimit].
	Limit int

	// ChunkSize caps each block. Default: [present.MaxChunk].
	ChunkSize int

	// Networks names required networks in the output.
	Networks []lead.Network

	Metrics *observe.Metrics
	Now     func() time.Time
}

// Pipeline is safe for concurrent use. Output settings can be swapped at
// runtime with [Pipeline.SetOutput].
type Pipeline struct {
	store         Loader
	processedOnly bool
	metrics       *observe.Metrics
	now           func() time.Time

	mu       sync.RWMutex
	limit    int
	chunk    int
	networks []lead.Network
}

// New creates a pipeline over cfg.Store.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		store:         cfg.Store,
		processedOnly: !cfg.IncludeUnprocessed,
		metrics:       cfg.Metrics,
		now:           cfg.Now,
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	if p.now == nil {
		p.now = time.Now
	}
	p.SetOutput(cfg.Limit, cfg.ChunkSize, cfg.Networks)
	return p
}

// SetOutput replaces the rendering settings. Non-positive values select the
// defaults.
func (p *Pipeline) SetOutput(limit, chunkSize int, networks []lead.Network) {
	if limit <= 0 {
		limit = present.DefaultLimit
	}
	if chunkSize <= 0 || chunkSize > present.MaxChunk {
		chunkSize = present.MaxChunk
	}
	p.mu.Lock()
	p.limit, p.chunk, p.networks = limit, chunkSize, networks
	p.mu.Unlock()
}

// Run loads records, keeps those matching c, orders them when c names a
// sort key and renders the first Limit of them.
func (p *Pipeline) Run(ctx context.Context, c filter.Criteria) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "query.run")
	defer span.End()

	res, err := p.run(ctx, "filter", func(records []lead.Record) []lead.Record {
		out := filter.ApplyAt(records, c, p.now())
		if c.SortBy != nil {
			asc := c.SortAscending != nil && *c.SortAscending
			out = rank.Sort(out, *c.SortBy, asc)
		}
		return out
	})
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

// Top renders the highest-probability records without filtering.
func (p *Pipeline) Top(ctx context.Context) (Result, error) {
	ctx, span := observe.StartSpan(ctx, "query.top")
	defer span.End()

	res, err := p.run(ctx, "top", func(records []lead.Record) []lead.Record {
		return rank.Sort(records, lead.FieldProbability, false)
	})
	if err != nil {
		span.RecordError(err)
	}
	return res, err
}

func (p *Pipeline) run(ctx context.Context, kind string, selectFn func([]lead.Record) []lead.Record) (Result, error) {
	p.mu.RLock()
	f := present.Formatter{Limit: p.limit, Networks: p.networks}
	chunkSize := p.chunk
	p.mu.RUnlock()

	var records []lead.Record
	err := stage(ctx, p.metrics, "load", func(sctx context.Context) error {
		var err error
		records, err = p.store.Load(sctx, p.processedOnly)
		return err
	})
	var perr *PipelineError
	if errors.As(err, &perr) {
		observe.Logger(ctx).Error("query: pipeline failed", "kind", kind, "err", err)
		p.metrics.RecordQuery(ctx, kind, "error")
		return Result{}, err
	}
	if err != nil {
		observe.Logger(ctx).Warn("query: load failed", "kind", kind, "err", err)
		p.metrics.RecordQuery(ctx, kind, "unavailable")
		return Result{}, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	if len(records) == 0 {
		p.metrics.RecordQuery(ctx, kind, "unavailable")
		return Result{}, ErrDataUnavailable
	}
	p.metrics.RecordsLoaded.Add(ctx, int64(len(records)))

	var (
		matched []lead.Record
		blocks  []string
	)
	err = stage(ctx, p.metrics, "select", func(context.Context) error {
		matched = selectFn(records)
		return nil
	})
	if err == nil {
		p.metrics.RecordsMatched.Add(ctx, int64(len(matched)))
		err = stage(ctx, p.metrics, "format", func(context.Context) error {
			blocks = present.ChunkAll(f.Render(matched), chunkSize)
			return nil
		})
	}
	if err != nil {
		observe.Logger(ctx).Error("query: pipeline failed", "kind", kind, "err", err)
		p.metrics.RecordQuery(ctx, kind, "error")
		return Result{}, err
	}

	status := "ok"
	if len(matched) == 0 {
		status = "empty"
	}
	p.metrics.RecordQuery(ctx, kind, status)
	return Result{Blocks: blocks, Total: len(matched), Shown: min(len(matched), f.Limit)}, nil
}

// stage runs fn as a timed stage and converts a panic into a PipelineError.
func stage(ctx context.Context, m *observe.Metrics, name string, fn func(context.Context) error) (err error) {
	sctx, done := observe.Stage(ctx, m, name)
	defer func() {
		if r := recover(); r != nil {
			err = &PipelineError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
		}
		done(err)
	}()
	return fn(sctx)
}
