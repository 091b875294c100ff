package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

const defaultTCPPort = 80

// TCPExecutor checks that a TCP connection can be established.
type TCPExecutor struct {
	dialer *net.Dialer
}

// NewTCPExecutor creates a TCP executor.
func NewTCPExecutor() *TCPExecutor {
	return &TCPExecutor{dialer: &net.Dialer{}}
}

// Execute dials the check target and closes the connection immediately.
func (e *TCPExecutor) Execute(ctx context.Context, check *domain.Check) domain.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, check.Timeout())
	defer cancel()

	addr := tcpAddress(check)

	start := time.Now()
	conn, err := e.dialer.DialContext(ctx, "tcp", addr)
	elapsed := elapsedMs(start)
	if err != nil {
		var result domain.CheckResult
		if isTimeout(ctx, err) {
			result = downResult(fmt.Sprintf("Connection timed out after %d seconds", timeoutSeconds(check)))
		} else {
			result = downResult(fmt.Sprintf("Connection failed: %v", err))
		}
		result.ResponseTimeMs = elapsed
		return result
	}
	conn.Close()

	return domain.CheckResult{
		Status:         domain.StatusUp,
		ResponseTimeMs: elapsed,
	}
}

// tcpAddress builds host:port. A port in the target wins over the explicit
// port field, which wins over the default.
func tcpAddress(check *domain.Check) string {
	target := strings.TrimSpace(check.Target)
	if i := strings.Index(target, "://"); i >= 0 {
		target = target[i+3:]
	}
	target = strings.TrimSuffix(target, "/")

	if host, port, err := net.SplitHostPort(target); err == nil && port != "" {
		return net.JoinHostPort(host, port)
	}

	port := defaultTCPPort
	if check.TCPPort != nil && *check.TCPPort > 0 {
		port = *check.TCPPort
	}
	return net.JoinHostPort(strings.Trim(target, "[]"), strconv.Itoa(port))
}
