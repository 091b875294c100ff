package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	pinger "github.com/macrat/go-parallel-pinger"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

var errIPv6Unavailable = errors.New("IPv6 ping is not available")

// Pinger sends ICMP echo requests to a single address.
type Pinger interface {
	Ping(ctx context.Context, target *net.IPAddr) (pinger.Result, error)
}

// IPResolver resolves host names to IP addresses. *net.Resolver implements it.
type IPResolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// PingExecutor checks reachability with ICMP echo.
type PingExecutor struct {
	pinger   Pinger
	resolver IPResolver
}

// NewPingExecutor creates a ping executor. A nil resolver means net.DefaultResolver.
func NewPingExecutor(p Pinger, resolver IPResolver) *PingExecutor {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &PingExecutor{pinger: p, resolver: resolver}
}

// Execute resolves the target and pings it. At least one reply means Up.
func (e *PingExecutor) Execute(ctx context.Context, check *domain.Check) domain.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, check.Timeout())
	defer cancel()

	start := time.Now()
	fail := func(message string) domain.CheckResult {
		result := downResult(message)
		result.ResponseTimeMs = elapsedMs(start)
		return result
	}

	addr, err := e.resolve(ctx, hostOf(check.Target))
	if err != nil {
		return fail(fmt.Sprintf("Ping failed: %v", err))
	}

	res, err := e.pinger.Ping(ctx, addr)
	if err != nil {
		if isTimeout(ctx, err) {
			return fail(fmt.Sprintf("Ping timed out after %d seconds", timeoutSeconds(check)))
		}
		return fail(fmt.Sprintf("Ping failed: %v", err))
	}
	if res.Recv == 0 {
		return fail("Ping failed: all packets lost")
	}

	return domain.CheckResult{
		Status:         domain.StatusUp,
		ResponseTimeMs: int(res.AvgRTT.Milliseconds()),
		ResponseBody: fmt.Sprintf("packets_sent=%d packets_recv=%d rtt_min=%s rtt_avg=%s rtt_max=%s",
			res.Sent, res.Recv, res.MinRTT, res.AvgRTT, res.MaxRTT),
	}
}

func (e *PingExecutor) resolve(ctx context.Context, host string) (*net.IPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		return &net.IPAddr{IP: ip}, nil
	}
	addrs, err := e.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, fmt.Errorf("unknown host %s", host)
		}
		return nil, err
	}
	// Prefer IPv4, matching the DNS probe.
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return &a, nil
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("unknown host %s", host)
	}
	return &addrs[0], nil
}

// ICMPConfig configures the shared ICMP pinger.
type ICMPConfig struct {
	Packets  int
	Interval time.Duration
	// Privileged forces raw sockets on or off. Nil keeps the platform default.
	Privileged *bool
}

// ICMPPinger shares one IPv4 and one IPv6 pinger between concurrent checks.
// The underlying sockets are opened on first use and closed when the last
// in-flight ping returns.
type ICMPPinger struct {
	config ICMPConfig

	mu     sync.Mutex
	users  int
	v4     *pinger.Pinger
	v6     *pinger.Pinger
	cancel context.CancelFunc
}

// NewICMPPinger creates a pinger. Sockets are not opened until Ping is called.
func NewICMPPinger(config ICMPConfig) *ICMPPinger {
	if config.Packets <= 0 {
		config.Packets = 3
	}
	if config.Interval <= 0 {
		config.Interval = 300 * time.Millisecond
	}
	return &ICMPPinger{config: config}
}

// Ping sends the configured number of echo requests to target.
func (p *ICMPPinger) Ping(ctx context.Context, target *net.IPAddr) (pinger.Result, error) {
	if err := p.acquire(); err != nil {
		return pinger.Result{}, err
	}
	defer p.release()

	pp := p.v6
	if target.IP.To4() != nil {
		pp = p.v4
	}
	if pp == nil {
		return pinger.Result{}, errIPv6Unavailable
	}
	return pp.Ping(ctx, target, p.config.Packets, p.config.Interval)
}

func (p *ICMPPinger) acquire() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.users == 0 {
		if err := p.start(); err != nil {
			return fmt.Errorf("setup ping service: %w", err)
		}
	}
	p.users++
	return nil
}

func (p *ICMPPinger) release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.users > 0 {
		p.users--
		if p.users == 0 {
			p.stop()
		}
	}
}

func (p *ICMPPinger) start() error {
	modes := []*bool{p.config.Privileged}
	if p.config.Privileged == nil {
		// Fall back to each explicit socket mode when the default is not permitted.
		privileged, unprivileged := true, false
		modes = append(modes, &privileged, &unprivileged)
	}

	var errs []error
	for _, mode := range modes {
		v4, v6, cancel, err := startPingers(mode)
		if err == nil {
			p.v4, p.v6, p.cancel = v4, v6, cancel
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func startPingers(privileged *bool) (*pinger.Pinger, *pinger.Pinger, context.CancelFunc, error) {
	v4 := pinger.NewIPv4()
	v6 := pinger.NewIPv6()
	if privileged != nil {
		v4.SetPrivileged(*privileged)
		v6.SetPrivileged(*privileged)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := v4.Start(ctx); err != nil {
		cancel()
		return nil, nil, nil, err
	}
	if err := v6.Start(ctx); err != nil {
		slog.Warn("IPv6 ping unavailable", "error", err)
		v6 = nil
	}
	return v4, v6, cancel, nil
}

func (p *ICMPPinger) stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.v4, p.v6, p.cancel = nil, nil, nil
}
