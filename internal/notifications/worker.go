package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	BatchSize         int
	PollInterval      time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	NumWorkers        int
	// RateLimit caps deliveries per second across all workers. Zero disables it.
	RateLimit float64
	RateBurst int
	// StuckAfter is how long an item may stay in processing before it is requeued.
	StuckAfter time.Duration
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		BatchSize:         50,
		PollInterval:      5 * time.Second,
		MaxAttempts:       5,
		InitialBackoff:    5 * time.Second,
		MaxBackoff:        10 * time.Minute,
		BackoffMultiplier: 2.0,
		NumWorkers:        2,
		RateLimit:         5,
		RateBurst:         20,
		StuckAfter:        5 * time.Minute,
	}
}

// Worker processes notifications from the queue.
type Worker struct {
	config     WorkerConfig
	repo       Repository
	dispatcher *Dispatcher
	renderer   *Renderer
	limiter    *rate.Limiter

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new notification worker.
func NewWorker(config WorkerConfig, repo Repository, dispatcher *Dispatcher, renderer *Renderer) *Worker {
	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}
	burst := config.RateBurst
	if burst <= 0 {
		burst = 1
	}
	return &Worker{
		config:     config,
		repo:       repo,
		dispatcher: dispatcher,
		renderer:   renderer,
		limiter:    rate.NewLimiter(limit, burst),
		stopCh:     make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting notification worker",
		"workers", w.config.NumWorkers,
		"batch_size", w.config.BatchSize,
		"poll_interval", w.config.PollInterval,
		"rate_limit", w.config.RateLimit,
	)

	for i := 0; i < w.config.NumWorkers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}

	w.wg.Add(1)
	go w.housekeeping(ctx)
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	slog.Info("notification worker stopped")
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processBatch(ctx, workerID)
		}
	}
}

// housekeeping requeues items abandoned in processing by a crashed worker.
func (w *Worker) housekeeping(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.config.StuckAfter <= 0 {
				continue
			}
			n, err := w.repo.RecoverStuckProcessing(ctx, w.config.StuckAfter)
			if err != nil {
				slog.Error("failed to recover stuck notifications", "error", err)
				continue
			}
			if n > 0 {
				recordRequeued(n)
				slog.Warn("requeued stuck notifications", "count", n)
			}
		}
	}
}

func (w *Worker) processBatch(ctx context.Context, workerID int) {
	items, err := w.repo.FetchPendingNotifications(ctx, w.config.BatchSize)
	if err != nil {
		slog.Error("failed to fetch pending notifications", "worker", workerID, "error", err)
		return
	}

	if len(items) == 0 {
		return
	}

	slog.Debug("processing notifications", "worker", workerID, "count", len(items))
	recordFetched(len(items))

	for _, item := range items {
		w.processItem(ctx, item)
	}
}

func (w *Worker) processItem(ctx context.Context, item *QueueItem) {
	if !w.dispatcher.Supports(item.ChannelType) {
		slog.Error("no sender for channel", "item_id", item.ID, "channel_type", item.ChannelType)
		w.markFailed(ctx, item, fmt.Errorf("%w: %s", ErrNoSender, item.ChannelType))
		return
	}

	subject, body, err := w.renderer.Render(item.Payload)
	if err != nil {
		slog.Error("failed to render", "item_id", item.ID, "error", err)
		w.markFailed(ctx, item, err)
		return
	}

	// Wait blocks instead of dropping so bursts are delayed, not lost.
	if err := w.limiter.Wait(ctx); err != nil {
		w.handleSendError(ctx, item, NewRetryableError(err))
		return
	}

	notification := Notification{
		To:      item.Target,
		Subject: subject,
		Body:    body,
		Type:    item.MessageType,
	}

	start := time.Now()
	err = w.dispatcher.SendToChannel(ctx, item.ChannelType, notification)
	duration := time.Since(start)

	if err != nil {
		w.handleSendError(ctx, item, err)
		return
	}

	if err := w.repo.MarkAsSent(ctx, item.ID); err != nil {
		slog.Error("failed to mark as sent", "item_id", item.ID, "error", err)
	}

	recordDelivery(item.ChannelType, outcomeSent, duration)

	slog.Debug("notification sent",
		"item_id", item.ID,
		"channel_type", item.ChannelType,
		"message_type", item.MessageType,
		"duration", duration,
	)
}

func (w *Worker) markFailed(ctx context.Context, item *QueueItem, err error) {
	if markErr := w.repo.MarkAsFailed(ctx, item.ID, err); markErr != nil {
		slog.Error("failed to mark as failed", "item_id", item.ID, "error", markErr)
	}
	recordDelivery(item.ChannelType, outcomeFailed, 0)
}

func (w *Worker) handleSendError(ctx context.Context, item *QueueItem, err error) {
	slog.Warn("send failed",
		"item_id", item.ID,
		"attempt", item.Attempts+1,
		"max_attempts", item.MaxAttempts,
		"error", err,
	)

	if !isRetryable(err) {
		w.markFailed(ctx, item, err)
		return
	}

	if item.Attempts+1 >= item.MaxAttempts {
		w.markFailed(ctx, item, fmt.Errorf("max attempts exceeded: %w", err))
		return
	}

	nextAttempt := w.calculateNextAttempt(item.Attempts + 1)
	if markErr := w.repo.MarkForRetry(ctx, item.ID, err, nextAttempt); markErr != nil {
		slog.Error("failed to mark for retry", "item_id", item.ID, "error", markErr)
	}
	recordDelivery(item.ChannelType, outcomeRetry, 0)

	slog.Info("notification scheduled for retry",
		"item_id", item.ID,
		"next_attempt", nextAttempt,
	)
}

func (w *Worker) calculateNextAttempt(attempt int) time.Time {
	backoff := float64(w.config.InitialBackoff)
	for i := 1; i < attempt; i++ {
		backoff *= w.config.BackoffMultiplier
	}

	if backoff > float64(w.config.MaxBackoff) {
		backoff = float64(w.config.MaxBackoff)
	}

	return time.Now().Add(time.Duration(backoff))
}

// isRetryable checks if an error is retryable. Unknown errors are retried.
func isRetryable(err error) bool {
	var r *RetryableError
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}

// RetryableError wraps an error and marks it as retryable or not.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable returns whether the error is retryable.
func (e *RetryableError) IsRetryable() bool {
	return e.Retryable
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a retryable error.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError creates a non-retryable error.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}
