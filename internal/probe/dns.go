package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

// Resolver looks up IP addresses. *net.Resolver implements it.
type Resolver interface {
	LookupIP(ctx context.Context, network, host string) ([]net.IP, error)
}

// DNSExecutor resolves the A records of the check target.
type DNSExecutor struct {
	resolver Resolver
}

// NewDNSExecutor creates a DNS executor. A nil resolver means net.DefaultResolver.
func NewDNSExecutor(resolver Resolver) *DNSExecutor {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &DNSExecutor{resolver: resolver}
}

// Execute resolves the target and records the addresses found.
func (e *DNSExecutor) Execute(ctx context.Context, check *domain.Check) domain.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, check.Timeout())
	defer cancel()

	start := time.Now()
	ips, err := e.resolver.LookupIP(ctx, "ip4", hostOf(check.Target))
	elapsed := elapsedMs(start)

	var result domain.CheckResult
	switch {
	case err != nil && isNotFound(err):
		result = downResult("No DNS records found")
	case err != nil && isTimeout(ctx, err):
		result = downResult(fmt.Sprintf("DNS lookup timed out after %d seconds", timeoutSeconds(check)))
	case err != nil:
		result = downResult(fmt.Sprintf("DNS lookup failed: %v", err))
	case len(ips) == 0:
		result = downResult("No DNS records found")
	default:
		records := make([]string, len(ips))
		for i, ip := range ips {
			records[i] = ip.String()
		}
		result = domain.CheckResult{
			Status:       domain.StatusUp,
			ResponseBody: preview(strings.Join(records, "; ")),
		}
	}
	result.ResponseTimeMs = elapsed
	return result
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// hostOf extracts a bare host name from a target that may be a URL or host:port.
func hostOf(target string) string {
	target = strings.TrimSpace(target)
	if strings.Contains(target, "://") {
		if u, err := url.Parse(target); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
	}
	if host, _, err := net.SplitHostPort(target); err == nil {
		return host
	}
	return strings.TrimSuffix(target, "/")
}
