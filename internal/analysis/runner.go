// Package analysis launches the external scrape-and-score pipeline that
// fills the record store.
package analysis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/leadscout/internal/observe"
)

// ErrNotConfigured is returned when no analysis command is set.
var ErrNotConfigured = errors.New("analysis: no command configured")

const (
	defaultTimeout   = 30 * time.Minute
	defaultTailLines = 20
	maxCapture       = 256 << 10
)

// Config configures a [Runner].
type Config struct {
	// Command is the argv of the pipeline, for example
	// ["python3", "main.py"].
	Command []string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Timeout bounds one run. Default: 30 minutes.
	Timeout time.Duration

	// TailLines is how many trailing output lines a [Report] keeps.
	TailLines int

	Metrics *observe.Metrics
}

// Report describes one finished run.
type Report struct {
	RunID    string
	Started  time.Time
	Duration time.Duration

	// ExitCode is -1 when the process did not exit on its own.
	ExitCode int
	TimedOut bool

	// Tail holds the last lines of combined stdout and stderr.
	Tail string

	// Shared is set for callers that joined a run started by someone else.
	Shared bool
}

// Success reports whether the pipeline exited cleanly.
func (r Report) Success() bool { return r.ExitCode == 0 && !r.TimedOut }

// Runner runs the pipeline. Concurrent [Runner.Run] calls share one
// process.
type Runner struct {
	cfg     Config
	group   singleflight.Group
	running atomic.Bool
}

// NewRunner creates a [Runner].
func NewRunner(cfg Config) *Runner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = defaultTailLines
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &Runner{cfg: cfg}
}

// Configured reports whether a command is set.
func (r *Runner) Configured() bool { return len(r.cfg.Command) > 0 }

// Running reports whether a run is in progress.
func (r *Runner) Running() bool { return r.running.Load() }

// Run starts the pipeline, or joins the run already in progress, and waits
// for it. Cancelling ctx stops the wait but not the shared run. A non-nil
// error means the process could not be started or did not succeed; the
// report is filled in either way once the process has been launched.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if !r.Configured() {
		return Report{}, ErrNotConfigured
	}

	ch := r.group.DoChan("analysis", func() (any, error) {
		// The run outlives the caller that happened to start it.
		return r.execute(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return Report{}, fmt.Errorf("analysis: wait: %w", ctx.Err())
	case res := <-ch:
		rep, _ := res.Val.(Report)
		rep.Shared = res.Shared
		return rep, res.Err
	}
}

func (r *Runner) execute(ctx context.Context) (Report, error) {
	r.running.Store(true)
	defer r.running.Store(false)

	ctx, span := observe.StartSpan(ctx, "analysis.run")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	rep := Report{RunID: uuid.NewString(), Started: time.Now()}
	log := observe.Logger(ctx).With("run_id", rep.RunID)
	log.Info("analysis started", "command", strings.Join(r.cfg.Command, " "))

	out := &capture{limit: maxCapture}
	cmd := exec.CommandContext(ctx, r.cfg.Command[0], r.cfg.Command[1:]...)
	cmd.Dir = r.cfg.Dir
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = 5 * time.Second

	err := cmd.Run()
	rep.Duration = time.Since(rep.Started)
	rep.Tail = tail(out.String(), r.cfg.TailLines)
	rep.ExitCode = cmd.ProcessState.ExitCode() // -1 when never started
	rep.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)

	status := "ok"
	switch {
	case rep.TimedOut:
		status = "timeout"
		err = fmt.Errorf("analysis: run %s timed out after %s", rep.RunID, r.cfg.Timeout)
	case err != nil:
		status = "failed"
		err = fmt.Errorf("analysis: run %s: %w", rep.RunID, err)
	}
	r.cfg.Metrics.RecordAnalysisRun(ctx, status, rep.Duration)

	if err != nil {
		span.RecordError(err)
		log.Error("analysis failed", "exit_code", rep.ExitCode, "duration", rep.Duration, "err", err, "tail", rep.Tail)
		return rep, err
	}
	log.Info("analysis finished", "duration", rep.Duration)
	return rep, nil
}

// capture keeps the last limit bytes written to it.
type capture struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (c *capture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(p)
	if over := c.buf.Len() - c.limit; over > 0 {
		c.buf.Next(over)
	}
	return len(p), nil
}

func (c *capture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
