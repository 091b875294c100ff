package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"
)

// Client is an HTTP client for testing API endpoints. Responses are
// validated against the OpenAPI document when a validator is set.
type Client struct {
	BaseURL    string
	Token      string
	APIKey     string
	HTTPClient *http.Client
	Validator  *OpenAPIValidator
	t          *testing.T
}

// NewClient creates a test client bound to t. validator may be nil.
func NewClient(t *testing.T, baseURL string, validator *OpenAPIValidator) *Client {
	t.Helper()
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		Validator:  validator,
		t:          t,
	}
}

// WithToken returns a copy of the client that sends token as a bearer token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.Token = token
	clone.APIKey = ""
	return &clone
}

// WithAPIKey returns a copy of the client that authenticates as an agent.
func (c *Client) WithAPIKey(apiKey string) *Client {
	clone := *c
	clone.APIKey = apiKey
	clone.Token = ""
	return &clone
}

// GET performs a GET request.
func (c *Client) GET(path string) *http.Response {
	return c.do(http.MethodGet, path, nil)
}

// POST performs a POST request with JSON body. body may be nil.
func (c *Client) POST(path string, body any) *http.Response {
	return c.do(http.MethodPost, path, body)
}

func (c *Client) do(method, path string, body any) *http.Response {
	c.t.Helper()

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		c.t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}

	if c.Validator != nil {
		// The original body was consumed by the transport.
		validationReq, _ := http.NewRequest(method, c.BaseURL+path, bytes.NewReader(bodyBytes))
		validationReq.Header = req.Header
		c.Validator.ValidateResponse(c.t, validationReq, resp)
	}

	return resp
}

// DecodeJSON decodes response body into v.
func DecodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
