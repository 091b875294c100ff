package domain

import (
	"strings"
	"time"
)

// CheckType identifies the probe protocol of a check.
type CheckType string

// Check types.
const (
	CheckTypeHTTP CheckType = "http"
	CheckTypeTCP  CheckType = "tcp"
	CheckTypePing CheckType = "ping"
	CheckTypeDNS  CheckType = "dns"
)

// IsValid checks if the check type is valid.
func (t CheckType) IsValid() bool {
	switch t {
	case CheckTypeHTTP, CheckTypeTCP, CheckTypePing, CheckTypeDNS:
		return true
	}
	return false
}

// Check is an active probe definition.
type Check struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	CustomerID     *string   `json:"customer_id,omitempty"`
	HostID         *string   `json:"host_id,omitempty"`
	Name           string    `json:"name"`
	Type           CheckType `json:"check_type"`
	Target         string    `json:"target"`

	HTTPMethod         string            `json:"http_method"`
	ExpectedStatusCode int               `json:"expected_status_code"`
	ExpectedKeyword    string            `json:"expected_keyword,omitempty"`
	KeywordShouldExist bool              `json:"keyword_should_exist"`
	RequestHeaders     map[string]string `json:"request_headers,omitempty"`
	RequestBody        string            `json:"request_body,omitempty"`
	FollowRedirects    bool              `json:"follow_redirects"`

	TCPPort *int `json:"tcp_port,omitempty"`

	MonitorSSL           bool `json:"monitor_ssl"`
	SSLExpiryWarningDays int  `json:"ssl_expiry_warning_days"`

	TimeoutSeconds  int `json:"timeout_seconds"`
	IntervalSeconds int `json:"interval_seconds"`

	CurrentStatus      Status     `json:"current_status"`
	LastCheckAt        *time.Time `json:"last_check_at,omitempty"`
	LastResponseTimeMs *int       `json:"last_response_time_ms,omitempty"`
	LastStatusCode     *int       `json:"last_status_code,omitempty"`
	LastErrorMessage   string     `json:"last_error_message,omitempty"`
	SSLExpiryDate      *time.Time `json:"ssl_expiry_date,omitempty"`
	SSLDaysRemaining   *int       `json:"ssl_days_remaining,omitempty"`

	MonitoringEnabled bool      `json:"monitoring_enabled"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Timeout returns the per-execution timeout.
func (c *Check) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Interval returns the time between executions.
func (c *Check) Interval() time.Duration {
	if c.IntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.IntervalSeconds) * time.Second
}

// IsDue reports whether the check should run at now.
func (c *Check) IsDue(now time.Time) bool {
	if c.LastCheckAt == nil {
		return true
	}
	return !c.LastCheckAt.Add(c.Interval()).After(now)
}

// IsHTTPS reports whether the target uses TLS.
func (c *Check) IsHTTPS() bool {
	return strings.HasPrefix(strings.ToLower(c.Target), "https://")
}

// CheckResult is the outcome of a single check execution.
type CheckResult struct {
	ID               int64      `json:"id"`
	CheckID          string     `json:"check_id"`
	Status           Status     `json:"status"`
	ResponseTimeMs   int        `json:"response_time_ms"`
	StatusCode       *int       `json:"status_code,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	ResponseBody     string     `json:"response_body,omitempty"`
	SSLExpiryDate    *time.Time `json:"ssl_expiry_date,omitempty"`
	SSLDaysRemaining *int       `json:"ssl_days_remaining,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CheckedAt        time.Time  `json:"checked_at"`
}
