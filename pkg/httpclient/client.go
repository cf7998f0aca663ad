package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// AuthStyle selects how the API key is attached to each request.
type AuthStyle string

const (
	// APIKeyHeader sends the key in an X-API-Key header (Limitless).
	APIKeyHeader AuthStyle = "api-key"

	// BearerToken sends the key as an Authorization bearer token (Omi).
	BearerToken AuthStyle = "bearer"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 60 * time.Second

// maxErrorBody limits how much of a failed response is kept on StatusError.
const maxErrorBody = 2048

// HTTPClient wraps an http.Client with authentication and JSON helpers.
type HTTPClient struct {
	client    *http.Client
	authStyle AuthStyle
	apiKey    string
	userAgent string
}

// NewClient creates a new HTTP client with the given authentication style.
func NewClient(authStyle AuthStyle, apiKey string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// Follow up to 10 redirects
			if len(via) >= 10 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	return &HTTPClient{
		client:    client,
		authStyle: authStyle,
		apiKey:    apiKey,
		userAgent: "lifelog-migrate/1.0",
	}
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status code: %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status code: %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Do executes an HTTP request with authentication headers attached.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.setHeaders(req)
	return c.client.Do(req)
}

// GetJSON issues a GET request and decodes a 2xx JSON response into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.doJSON(req, out)
}

// PostJSON encodes body as JSON, POSTs it, and decodes a 2xx response into
// out. out may be nil when the response body is not needed.
func (c *HTTPClient) PostJSON(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *HTTPClient) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     req.Method,
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Body:       string(bytes.TrimSpace(snippet)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// setHeaders sets the authentication header for the configured style
func (c *HTTPClient) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)

	switch c.authStyle {
	case APIKeyHeader:
		req.Header.Set("X-API-Key", c.apiKey)

	case BearerToken:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

	default:
		// No authentication
	}
}

func drainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
