package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
)

const (
	// maxBodyBytes bounds how much of a response is read for keyword matching.
	maxBodyBytes = 1 << 20
	// previewChars is the length of the stored body preview.
	previewChars = 1000
	maxRedirects = 10
)

var errTooManyRedirects = errors.New("stopped after 10 redirects")

// HTTPExecutor performs HTTP(S) checks.
type HTTPExecutor struct {
	transport http.RoundTripper
	userAgent string
	now       func() time.Time
}

// HTTPOption configures an HTTPExecutor.
type HTTPOption func(*HTTPExecutor)

// WithTransport overrides the round tripper used for requests.
func WithTransport(rt http.RoundTripper) HTTPOption {
	return func(e *HTTPExecutor) {
		e.transport = rt
	}
}

// WithUserAgent sets the User-Agent header sent unless the check overrides it.
func WithUserAgent(ua string) HTTPOption {
	return func(e *HTTPExecutor) {
		e.userAgent = ua
	}
}

// NewHTTPExecutor creates an HTTP executor.
func NewHTTPExecutor(opts ...HTTPOption) *HTTPExecutor {
	e := &HTTPExecutor{
		transport: &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			DisableKeepAlives: true,
			ForceAttemptHTTP2: true,
		},
		userAgent: "monitorsystem health check",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *HTTPExecutor) client(check *domain.Check) *http.Client {
	c := &http.Client{Transport: e.transport}
	if check.FollowRedirects {
		c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return c
}

// Execute performs the request described by check.
func (e *HTTPExecutor) Execute(ctx context.Context, check *domain.Check) domain.CheckResult {
	ctx, cancel := context.WithTimeout(ctx, check.Timeout())
	defer cancel()

	req, err := e.newRequest(ctx, check)
	if err != nil {
		return downResult(fmt.Sprintf("Invalid request: %v", err))
	}

	start := time.Now()
	resp, err := e.client(check).Do(req)
	if err != nil {
		result := downResult(httpErrorMessage(ctx, check, err))
		result.ResponseTimeMs = elapsedMs(start)
		if check.MonitorSSL && check.IsHTTPS() {
			var verr *tls.CertificateVerificationError
			if errors.As(err, &verr) && len(verr.UnverifiedCertificates) > 0 {
				e.applyCertificate(&result, verr.UnverifiedCertificates[0])
			}
		}
		return result
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	result := domain.CheckResult{
		ResponseTimeMs: elapsedMs(start),
		StatusCode:     &resp.StatusCode,
		ResponseBody:   preview(string(body)),
	}

	if check.MonitorSSL && check.IsHTTPS() && resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		e.applyCertificate(&result, resp.TLS.PeerCertificates[0])
	}

	expected := check.ExpectedStatusCode
	if expected == 0 {
		expected = http.StatusOK
	}

	switch {
	case resp.StatusCode != expected:
		result.Status = domain.StatusDown
		result.ErrorMessage = fmt.Sprintf("Unexpected status code: %d", resp.StatusCode)
	case readErr != nil && check.ExpectedKeyword != "":
		result.Status = domain.StatusDown
		result.ErrorMessage = httpErrorMessage(ctx, check, readErr)
	case check.ExpectedKeyword != "" && !keywordMatches(string(body), check.ExpectedKeyword, check.KeywordShouldExist):
		result.Status = domain.StatusDown
		if check.KeywordShouldExist {
			result.ErrorMessage = fmt.Sprintf("Expected keyword '%s' not found", check.ExpectedKeyword)
		} else {
			result.ErrorMessage = fmt.Sprintf("Unexpected keyword '%s' found", check.ExpectedKeyword)
		}
	default:
		result.Status = domain.StatusUp
	}

	return result
}

func (e *HTTPExecutor) newRequest(ctx context.Context, check *domain.Check) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(check.HTTPMethod))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	hasBody := check.RequestBody != "" &&
		(method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch)
	if hasBody {
		body = strings.NewReader(check.RequestBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, check.Target, body)
	if err != nil {
		return nil, err
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range check.RequestHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (e *HTTPExecutor) applyCertificate(result *domain.CheckResult, cert *x509.Certificate) {
	expiry := cert.NotAfter.UTC()
	days := int(expiry.Sub(e.now()).Hours() / 24)
	result.SSLExpiryDate = &expiry
	result.SSLDaysRemaining = &days
}

func httpErrorMessage(ctx context.Context, check *domain.Check, err error) string {
	if isTimeout(ctx, err) {
		return fmt.Sprintf("Request timed out after %d seconds", timeoutSeconds(check))
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	return err.Error()
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func keywordMatches(body, keyword string, shouldExist bool) bool {
	found := strings.Contains(strings.ToLower(body), strings.ToLower(keyword))
	return found == shouldExist
}

// preview returns the first previewChars characters of s.
func preview(s string) string {
	n := 0
	for i := range s {
		if n == previewChars {
			return s[:i]
		}
		n++
	}
	return s
}
