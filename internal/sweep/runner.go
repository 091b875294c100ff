// Package sweep runs the periodic background jobs: silent-host detection,
// maintenance window expiry and data retention.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/ctxlog"
	"github.com/robfig/cron/v3"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Runner schedules jobs on cron specs. A job still running when its next
// activation fires is skipped for that activation.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRunner creates a runner. Schedules are evaluated in UTC.
func NewRunner() *Runner {
	logger := slog.Default().With("component", "sweep")
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add schedules job on spec, which accepts standard five-field cron
// expressions and descriptors such as "@every 30s".
func (r *Runner) Add(spec string, job Job) error {
	if _, err := r.cron.AddFunc(spec, func() { r.runJob(job) }); err != nil {
		return fmt.Errorf("schedule %s job %q: %w", job.Name(), spec, err)
	}
	r.logger.Info("job scheduled", "job", job.Name(), "schedule", spec)
	return nil
}

// Start begins executing scheduled jobs. Jobs run with a context derived
// from ctx that is cancelled by Stop.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.cancel()
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.cron.Start()
	r.logger.Info("sweep runner started", "jobs", len(r.cron.Entries()))
}

// Stop cancels running jobs and waits for them to return.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	r.logger.Info("sweep runner stopped")
}

// RunNow executes job once, synchronously, with the runner's context.
func (r *Runner) RunNow(job Job) {
	r.runJob(job)
}

func (r *Runner) runJob(job Job) {
	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	if ctx.Err() != nil {
		return
	}

	ctx = ctxlog.WithLogger(ctx, r.logger.With("job", job.Name()))
	start := time.Now()
	err := job.Run(ctx)
	jobDuration.WithLabelValues(job.Name()).Observe(time.Since(start).Seconds())

	if err != nil {
		jobRuns.WithLabelValues(job.Name(), "error").Inc()
		ctxlog.FromContext(ctx).Error("job failed", "error", err)
		return
	}
	jobRuns.WithLabelValues(job.Name(), "ok").Inc()
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
