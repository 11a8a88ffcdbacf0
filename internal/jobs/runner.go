package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/example/erp-automation/internal/application"
	"github.com/example/erp-automation/internal/metrics"
)

var (
	// ErrUnknownJob is returned by RunNow for names that were never registered.
	ErrUnknownJob = errors.New("jobs: unknown job")
	// ErrJobRunning is returned by RunNow while the same job is still executing.
	ErrJobRunning = errors.New("jobs: job already running")
)

// Outcome labels a finished job run.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomePanic   = "panic"
	OutcomeSkipped = "skipped"
)

// Func performs one job run and reports the number of documents it touched.
type Func func(ctx context.Context) (int, error)

// Job is a named cron entry.
type Job struct {
	Name string
	Spec string
	Run  Func
}

// Result describes one job run.
type Result struct {
	Job      string
	Outcome  string
	Rows     int
	Duration time.Duration
	Err      error
}

type entry struct {
	job     Job
	running sync.Mutex
}

// Runner triggers jobs on their cron specs. Errors and panics are caught at
// the job boundary; the cron loop never sees them.
type Runner struct {
	parser  cron.Parser
	cron    *cron.Cron
	timeout time.Duration
	log     *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	baseCtx context.Context
}

// NewRunner creates a runner evaluating specs in loc. timeout bounds each run;
// zero disables the bound.
func NewRunner(loc *time.Location, timeout time.Duration, log *slog.Logger) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "jobs")
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	adapter := cronLogger{log: log}
	return &Runner{
		parser: parser,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		timeout: timeout,
		log:     log,
		entries: map[string]*entry{},
		baseCtx: context.Background(),
	}
}

// Register adds job to the schedule. Names must be unique and specs valid.
func (r *Runner) Register(job Job) error {
	if job.Name == "" || job.Run == nil {
		return errors.New("jobs: name and run func are required")
	}
	if _, err := r.parser.Parse(job.Spec); err != nil {
		return fmt.Errorf("jobs: invalid spec %q for %s: %w", job.Spec, job.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[job.Name]; dup {
		return fmt.Errorf("jobs: duplicate job %s", job.Name)
	}
	e := &entry{job: job}
	if _, err := r.cron.AddFunc(job.Spec, func() { r.tick(e) }); err != nil {
		return fmt.Errorf("jobs: schedule %s: %w", job.Name, err)
	}
	r.entries[job.Name] = e
	r.log.Info("job registered", "job", job.Name, "spec", job.Spec)
	return nil
}

// Names lists registered jobs in sorted order.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins firing cron entries. Runs derive their context from ctx.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.baseCtx = ctx
	r.mu.Unlock()
	r.cron.Start()
	r.log.Info("runner started", "jobs", len(r.Names()))
}

// Stop halts the cron loop and waits for running jobs or ctx expiry.
func (r *Runner) Stop(ctx context.Context) {
	done := r.cron.Stop().Done()
	select {
	case <-done:
		r.log.Info("runner stopped")
	case <-ctx.Done():
		r.log.Warn("runner stop timed out", "error", ctx.Err())
	}
}

// RunNow executes the named job synchronously.
func (r *Runner) RunNow(ctx context.Context, name string) (Result, error) {
	r.mu.Lock()
	e, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !e.running.TryLock() {
		metrics.RecordJob(name, OutcomeSkipped, 0, 0)
		return Result{Job: name, Outcome: OutcomeSkipped}, ErrJobRunning
	}
	defer e.running.Unlock()
	return r.execute(ctx, e.job), nil
}

func (r *Runner) tick(e *entry) {
	if !e.running.TryLock() {
		r.log.Info("job skipped, previous run still active", "job", e.job.Name)
		metrics.RecordJob(e.job.Name, OutcomeSkipped, 0, 0)
		return
	}
	defer e.running.Unlock()

	r.mu.Lock()
	ctx := r.baseCtx
	r.mu.Unlock()
	r.execute(ctx, e.job)
}

func (r *Runner) execute(ctx context.Context, job Job) (res Result) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	logger := r.log.With("job", job.Name)
	start := time.Now()
	res = Result{Job: job.Name}

	defer func() {
		if rec := recover(); rec != nil {
			res.Outcome = OutcomePanic
			res.Err = fmt.Errorf("panic: %v", rec)
			logger.Error("job panicked", "panic", rec, "stack", string(debug.Stack()))
		}
		res.Duration = time.Since(start)
		metrics.RecordJob(job.Name, res.Outcome, res.Duration.Seconds(), res.Rows)
	}()

	rows, err := job.Run(ctx)
	res.Rows = rows
	if err != nil {
		res.Outcome = OutcomeError
		res.Err = err
		logger.Error("job failed", "error", err, "error_kind", application.ErrorKind(err), "rows", rows)
		return res
	}
	res.Outcome = OutcomeSuccess
	logger.Info("job finished", "rows", rows, "duration_ms", time.Since(start).Milliseconds())
	return res
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
