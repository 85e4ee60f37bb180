// Package httpclient implements the Retry Transport (C5): bounded
// exponential backoff, Retry-After respect, and class-based error mapping
// shared by the commerce and embedding clients (design note: "a single
// transport strategy should be used by both"). Grounded on
// internal/connector/http/{client.go,auth.go} from the teacher.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/nucleus/giftreco/internal/ferrors"
)

// Config configures the retrying HTTP client.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	RateLimit   float64
	RateBurst   int
	Headers     map[string]string
	UserAgent   string
	Transport   http.RoundTripper
}

// DefaultConfig returns sensible defaults matching spec §4.5 (5 attempts).
func DefaultConfig() Config {
	return Config{
		Timeout:     10 * time.Second,
		MaxAttempts: 5,
		BaseBackoff: 1 * time.Second,
		RateLimit:   10.0,
		RateBurst:   5,
		UserAgent:   "giftreco-etl/1.0",
		Headers:     map[string]string{},
	}
}

// Client is a rate-limited, retry-capable HTTP client.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// NewClient builds a Client, filling unset fields from DefaultConfig.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = def.RateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = def.RateBurst
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
}

// Request describes a single outbound call.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	Body    io.Reader
}

// Response wraps a successful HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// JSON unmarshals the response body into target.
func (r *Response) JSON(target any) error {
	return json.Unmarshal(r.Body, target)
}

// DecodeAny decodes the response body preserving number text (json.Number),
// which the canonicalizer needs for stable array sort order.
func (r *Response) DecodeAny() (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(r.Body)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// HTTPError is the raw (pre-taxonomy) transport error; RetryAfter is parsed
// from the Retry-After header, nil when absent or unparseable so a literal
// "Retry-After: 0" can still be honored instead of falling back to backoff.
type HTTPError struct {
	StatusCode int
	Body       string
	RetryAfter *time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Do executes req with retry/backoff per spec §4.5's classification table.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := c.doOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		var herr *HTTPError
		if asHTTPError(err, &herr) {
			switch {
			case herr.StatusCode == 401 || herr.StatusCode == 403:
				return nil, ferrors.Auth(herr)
			case herr.StatusCode == 429 || herr.StatusCode >= 500:
				if attempt == c.cfg.MaxAttempts {
					break
				}
				sleep := backoffFor(c.cfg.BaseBackoff, attempt)
				if herr.RetryAfter != nil {
					sleep = *herr.RetryAfter
				}
				if waitErr := sleepCtx(ctx, sleep); waitErr != nil {
					return nil, waitErr
				}
				continue
			default:
				return nil, ferrors.Client(herr)
			}
		} else {
			// Network/timeout error: retry with plain exponential backoff.
			if attempt == c.cfg.MaxAttempts {
				break
			}
			if waitErr := sleepCtx(ctx, backoffFor(c.cfg.BaseBackoff, attempt)); waitErr != nil {
				return nil, waitErr
			}
			continue
		}
	}
	return nil, ferrors.Transient(fmt.Errorf("retries exhausted after %d attempts: %w", c.cfg.MaxAttempts, lastErr))
}

func backoffFor(base time.Duration, attempt int) time.Duration {
	return base * time.Duration(1<<uint(attempt-1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func asHTTPError(err error, target **HTTPError) bool {
	if he, ok := err.(*HTTPError); ok {
		*target = he
		return true
	}
	return false
}

func (c *Client) doOnce(ctx context.Context, req *Request) (*Response, error) {
	fullURL := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(req.Path, "/")
	if len(req.Query) > 0 {
		fullURL += "?" + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, req.Body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}, nil
}

func parseRetryAfter(v string) *time.Duration {
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		d := time.Duration(secs) * time.Second
		return &d
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return &d
	}
	return nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}
	return c.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    path,
		Body:    strings.NewReader(string(data)),
		Headers: map[string]string{"Content-Type": "application/json"},
	})
}
