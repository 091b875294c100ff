package checks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/ctxlog"
	"golang.org/x/sync/semaphore"
)

// Executor runs a single check attempt. probe.Registry implements it.
type Executor interface {
	Execute(ctx context.Context, check *domain.Check) domain.CheckResult
}

// Recorder persists a result. *Service implements it.
type Recorder interface {
	RecordResult(ctx context.Context, check *domain.Check, result *domain.CheckResult) error
}

// SchedulerConfig contains scheduler configuration.
type SchedulerConfig struct {
	TickInterval time.Duration
	MaxWorkers   int
	// PersistTimeout bounds result persistence after a probe finished.
	PersistTimeout time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		TickInterval:   5 * time.Second,
		MaxWorkers:     20,
		PersistTimeout: 10 * time.Second,
	}
}

// Scheduler runs due checks on a fixed tick. Different checks run in
// parallel up to MaxWorkers; a check that is still running when it becomes
// due again is skipped for that tick.
type Scheduler struct {
	config   SchedulerConfig
	repo     Repository
	executor Executor
	recorder Recorder
	now      func() time.Time

	sem *semaphore.Weighted

	mu       sync.Mutex
	inFlight map[string]struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	loopWG   sync.WaitGroup
	runWG    sync.WaitGroup
}

// NewScheduler creates a new check scheduler.
func NewScheduler(config SchedulerConfig, repo Repository, executor Executor, recorder Recorder) *Scheduler {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 1
	}
	if config.TickInterval <= 0 {
		config.TickInterval = 5 * time.Second
	}
	if config.PersistTimeout <= 0 {
		config.PersistTimeout = 10 * time.Second
	}
	return &Scheduler{
		config:   config,
		repo:     repo,
		executor: executor,
		recorder: recorder,
		now:      time.Now,
		sem:      semaphore.NewWeighted(int64(config.MaxWorkers)),
		inFlight: make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("starting check scheduler",
		"tick_interval", s.config.TickInterval,
		"max_workers", s.config.MaxWorkers,
	)

	s.loopWG.Add(1)
	go s.loop(ctx)
}

// Stop stops scheduling and waits for running checks to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.loopWG.Wait()
	s.runWG.Wait()
	slog.Info("check scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.loopWG.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick starts every due check that is not already running, as long as
// worker slots are free. It returns the number of checks started.
func (s *Scheduler) Tick(ctx context.Context) int {
	due, err := s.repo.ListDueChecks(ctx, s.now())
	if err != nil {
		slog.Error("failed to list due checks", "error", err)
		return 0
	}

	started := 0
	for _, check := range due {
		if !s.claim(check.ID) {
			checksSkipped.WithLabelValues("in_flight").Inc()
			continue
		}
		if !s.sem.TryAcquire(1) {
			s.unclaim(check.ID)
			// Remaining checks stay due and are picked up on a later tick.
			checksSkipped.WithLabelValues("pool_full").Inc()
			slog.Debug("check pool saturated", "started", started, "due", len(due))
			break
		}

		started++
		s.runWG.Add(1)
		go s.run(ctx, check)
	}
	return started
}

func (s *Scheduler) run(ctx context.Context, check *domain.Check) {
	defer s.runWG.Done()
	defer s.sem.Release(1)
	defer s.unclaim(check.ID)

	checksInFlight.Inc()
	defer checksInFlight.Dec()

	ctx = ctxlog.With(ctx, "check_id", check.ID, "check_type", check.Type)
	logger := ctxlog.FromContext(ctx)

	probeCtx, cancel := context.WithTimeout(ctx, check.Timeout())
	result := s.executor.Execute(probeCtx, check)
	cancel()

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.PersistTimeout)
	defer cancel()

	if err := s.recorder.RecordResult(persistCtx, check, &result); err != nil {
		logger.Error("failed to record check result", "check", check.Name, "error", err)
		return
	}

	logger.Debug("check executed",
		"status", result.Status,
		"response_time_ms", result.ResponseTimeMs,
	)
}

func (s *Scheduler) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[id]; ok {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Scheduler) unclaim(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
