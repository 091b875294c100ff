// Package probe runs single HTTP, TCP, ICMP and DNS checks against a target.
//
// Executors never return errors. Every failure, including timeouts, becomes a
// Down result carrying a human readable message.
package probe

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Executor performs one attempt of a check.
type Executor interface {
	Execute(ctx context.Context, check *domain.Check) domain.CheckResult
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, check *domain.Check) domain.CheckResult

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, check *domain.Check) domain.CheckResult {
	return f(ctx, check)
}

// Registry dispatches checks to the executor registered for their type.
type Registry struct {
	executors map[domain.CheckType]Executor
	now       func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[domain.CheckType]Executor),
		now:       time.Now,
	}
}

// Register sets the executor for a check type, replacing any previous one.
func (r *Registry) Register(t domain.CheckType, e Executor) {
	r.executors[t] = e
}

// Execute runs the check and stamps the result with the check id and timing.
func (r *Registry) Execute(ctx context.Context, check *domain.Check) (result domain.CheckResult) {
	started := r.now()
	defer func() {
		if p := recover(); p != nil {
			slog.Error("probe panicked", "check_id", check.ID, "check_type", check.Type, "panic", p)
			result = downResult(fmt.Sprintf("Probe failed: %v", p))
		}
		result.CheckID = check.ID
		result.StartedAt = started
		if result.CheckedAt.IsZero() {
			result.CheckedAt = r.now()
		}
		if result.Status == "" {
			result.Status = domain.StatusUnknown
		}
		recordExecution(check.Type, result)
	}()

	e, ok := r.executors[check.Type]
	if !ok {
		return downResult(fmt.Sprintf("Unsupported check type: %s", check.Type))
	}
	return e.Execute(ctx, check)
}

func downResult(message string) domain.CheckResult {
	return domain.CheckResult{
		Status:       domain.StatusDown,
		ErrorMessage: message,
	}
}

func elapsedMs(since time.Time) int {
	return int(time.Since(since).Milliseconds())
}

func timeoutSeconds(check *domain.Check) int {
	return int(check.Timeout().Seconds())
}

// Config holds settings for the default executors.
type Config struct {
	UserAgent string
	ICMP      ICMPConfig
}

// NewDefaultRegistry registers the HTTP, TCP, ping and DNS executors.
func NewDefaultRegistry(cfg Config) *Registry {
	r := NewRegistry()
	r.Register(domain.CheckTypeHTTP, NewHTTPExecutor(WithUserAgent(cfg.UserAgent)))
	r.Register(domain.CheckTypeTCP, NewTCPExecutor())
	r.Register(domain.CheckTypePing, NewPingExecutor(NewICMPPinger(cfg.ICMP), nil))
	r.Register(domain.CheckTypeDNS, NewDNSExecutor(nil))
	return r
}
