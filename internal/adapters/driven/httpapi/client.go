// Package httpapi is the JSON-over-HTTP client shared by the provider
// adapters. It throttles requests, retries transient failures and maps every
// failure onto a *domain.ProviderError.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Qingzhee/rag-engine/internal/core/domain"
	"github.com/Qingzhee/rag-engine/internal/logger"
)

// Default configuration values.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 30 * time.Second

	// maxErrorBody bounds the response text quoted in errors.
	maxErrorBody = 512
)

// Config holds configuration for a provider client.
type Config struct {
	// Provider names the service in errors, e.g. "openai".
	Provider string

	// BaseURL is prepended to every request path.
	BaseURL string

	// Headers are sent with every request.
	Headers map[string]string

	// Timeout bounds a single attempt (default: 60s).
	Timeout time.Duration

	// RequestsPerSecond throttles requests. 0 disables throttling.
	RequestsPerSecond float64

	// Burst is the token bucket size (default: 1).
	Burst int

	// MaxRetries is the number of retries after the first attempt
	// (default: 3). Negative disables retries.
	MaxRetries int

	// BaseBackoff is the first retry delay, doubled per attempt (default: 500ms).
	BaseBackoff time.Duration

	// MaxBackoff caps the retry delay (default: 30s).
	MaxBackoff time.Duration

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client sends JSON requests to one provider.
type Client struct {
	http        *http.Client
	provider    string
	baseURL     string
	headers     map[string]string
	limiter     *RateLimiter
	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// New creates a client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		http:        httpClient,
		provider:    cfg.Provider,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		headers:     headers,
		limiter:     NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		maxRetries:  cfg.MaxRetries,
		baseBackoff: cfg.BaseBackoff,
		maxBackoff:  cfg.MaxBackoff,
		sleep:       sleepContext,
	}
}

// Provider returns the provider name used in errors.
func (c *Client) Provider() string {
	return c.provider
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do sends in as JSON to path and decodes the response into out. A nil in
// sends no body; a nil out discards the response. Transient failures are
// retried with exponential backoff, or after the Retry-After the provider
// asked for.
func (c *Client) Do(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return domain.NewProviderError(c.provider, op, domain.ErrorKindProviderLogic,
				fmt.Errorf("marshal request: %w", err))
		}
	}

	var lastErr *domain.ProviderError
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return c.contextError(op, err)
		}

		perr := c.attempt(ctx, op, method, path, body, out)
		if perr == nil {
			return nil
		}
		lastErr = perr

		if !retryable(perr) || attempt == c.maxRetries {
			break
		}

		wait := c.backoff(attempt)
		if perr.Kind == domain.ErrorKindRateLimit && perr.RetryAfter > 0 {
			wait = min(perr.RetryAfter, c.maxBackoff)
			c.limiter.RecordRateLimit(wait)
		}
		logger.Debug("%s %s: retrying in %s after %v", c.provider, op, wait, perr)
		if err := c.sleep(ctx, wait); err != nil {
			return c.contextError(op, err)
		}
	}
	return lastErr
}

func (c *Client) attempt(ctx context.Context, op, method, path string, body []byte, out any) *domain.ProviderError {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return domain.NewProviderError(c.provider, op, domain.ErrorKindProviderLogic,
			fmt.Errorf("create request: %w", err))
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, op, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(op, resp, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.NewProviderError(c.provider, op, domain.ErrorKindProviderLogic,
			fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) statusError(op string, resp *http.Response, body []byte) *domain.ProviderError {
	perr := StatusError(c.provider, op, resp.StatusCode, ErrorMessage(body))
	if perr.Kind == domain.ErrorKindRateLimit {
		perr.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	}
	return perr
}

// StatusError builds the error for a non-2xx response. SDK-based adapters
// use it to classify the status codes their clients report.
func StatusError(provider, op string, status int, msg string) *domain.ProviderError {
	perr := domain.NewProviderError(provider, op, ClassifyStatus(status), errors.New(msg))
	perr.StatusCode = status
	return perr
}

func (c *Client) transportError(ctx context.Context, op string, err error) *domain.ProviderError {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return c.contextError(op, ctxErr)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewProviderError(c.provider, op, domain.ErrorKindTimeout, err)
	}
	return domain.NewProviderError(c.provider, op, domain.ErrorKindTransport, err)
}

func (c *Client) contextError(op string, err error) *domain.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewProviderError(c.provider, op, domain.ErrorKindTimeout, err)
	}
	return domain.NewProviderError(c.provider, op, domain.ErrorKindCanceled, err)
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseBackoff << attempt
	if d <= 0 || d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

// retryable excludes authentication failures, which no retry can fix.
func retryable(err *domain.ProviderError) bool {
	if errors.Is(err.Err, context.Canceled) || errors.Is(err.Err, context.DeadlineExceeded) {
		return false
	}
	if err.StatusCode == http.StatusUnauthorized || err.StatusCode == http.StatusForbidden {
		return false
	}
	return err.Retryable()
}

// ClassifyStatus maps an HTTP status to a failure kind.
func ClassifyStatus(status int) domain.ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return domain.ErrorKindRateLimit
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return domain.ErrorKindTimeout
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return domain.ErrorKindTransport
	case status >= 500:
		return domain.ErrorKindTransport
	default:
		return domain.ErrorKindProviderLogic
	}
}

// ParseRetryAfter reads a Retry-After header given in seconds or as an HTTP
// date. Unparseable or past values yield 0.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// ErrorMessage extracts a provider error message from a response body,
// falling back to the truncated body text.
func ErrorMessage(body []byte) string {
	var payload struct {
		Error  json.RawMessage `json:"error"`
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := rawMessage(payload.Error); msg != "" {
			return msg
		}
		if msg := rawMessage(payload.Status); msg != "" {
			return msg
		}
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response"
	}
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}

// rawMessage handles "error": "text", "error": {"message": "text"} and
// Qdrant's "status": {"error": "text"}.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "ok" {
			return ""
		}
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Message != "" {
			return obj.Message
		}
		return obj.Error
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
