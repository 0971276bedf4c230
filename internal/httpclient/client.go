// Package httpclient is the outbound HTTP client shared by the weather and
// price providers: JSON GETs with retries, rotating User-Agent and gzip.
package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/corpix/uarand"
	"github.com/klauspost/compress/gzip"

	"github.com/kiarash-bot/kiarash/internal/ratelimit"
)

// maxBodyBytes caps a decoded response body.
const maxBodyBytes = 8 << 20

// StatusError is returned for non-2xx responses. Body holds the (decoded)
// response payload so callers can read provider error documents.
type StatusError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status for %s: %d", e.URL, e.StatusCode)
}

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	MaxRetries   int
	InitialDelay time.Duration      // first retry delay, default 500ms
	Limiter      *ratelimit.Limiter // optional pacing shared by all requests
	UserAgent    func() string      // default: uarand.GetRandom
}

// Client performs JSON GET requests with rate limiting and retries.
type Client struct {
	httpClient   *http.Client
	limiter      *ratelimit.Limiter
	userAgent    func() string
	maxRetries   int
	initialDelay time.Duration
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 500 * time.Millisecond
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.UserAgent == nil {
		opts.UserAgent = uarand.GetRandom
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:      opts.Limiter,
		userAgent:    opts.UserAgent,
		maxRetries:   opts.MaxRetries,
		initialDelay: opts.InitialDelay,
	}
}

// GetJSON performs a GET request and decodes the JSON body into out.
// 429 and 5xx responses and network errors are retried; other non-2xx
// responses return a *StatusError immediately.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode JSON from %s: %w", redact(url), err)
	}
	return nil
}

// Get performs a GET request with rate limiting and retries and returns the
// decoded body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := RetryWithBackoff(ctx, c.maxRetries, c.initialDelay, func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", c.userAgent())
		req.Header.Set("Accept", "application/json, text/plain, */*")
		req.Header.Set("Accept-Language", "fa-IR,fa;q=0.9,en-US;q=0.8,en;q=0.7")
		req.Header.Set("Accept-Encoding", "gzip")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return Permanent(ctx.Err())
			}
			return fmt.Errorf("request to %s failed: %w", redact(url), err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := readBody(resp)
		if err != nil {
			return fmt.Errorf("failed to read body from %s: %w", redact(url), err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{URL: redact(url), StatusCode: resp.StatusCode, Body: data}
			if retryableStatus(resp.StatusCode) {
				return statusErr
			}
			return Permanent(statusErr)
		}

		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

// readBody returns the response payload, inflating gzip when the server sent it.
func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress gzip: %w", err)
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}
	return io.ReadAll(io.LimitReader(reader, maxBodyBytes))
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return code >= 500
}

// IsNetworkError reports whether err came from the transport rather than the server.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}

// redact strips the query string, which carries API keys.
func redact(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
