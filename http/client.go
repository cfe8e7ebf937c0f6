// Package http is the request substrate for every call nicotools makes to the
// video site: cookie-backed sessions, bounded retries, per-host pacing, a
// circuit breaker, and streaming downloads with connect and idle-read timeouts.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"nicotools/internal/retry"
)

// Client wraps an http.Client with retry, rate limiting and circuit breaking.
type Client struct {
	base           *http.Client
	stream         *http.Client
	config         *Config
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
	session        *SessionManager
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout bounds a whole buffered request, body included.
	Timeout time.Duration

	// ConnectTimeout bounds dialing.
	ConnectTimeout time.Duration

	// ReadTimeout bounds the wait for response headers and, for streams,
	// the longest gap between two successful body reads.
	ReadTimeout time.Duration

	Retry retry.Config

	UserAgent string

	RateLimiter RateLimiterConfig

	CircuitBreaker CircuitBreakerConfig

	Transport TransportConfig
}

// TransportConfig configures connection pooling.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DisableKeepAlives   bool
}

// DefaultConfig returns defaults tuned for the video site.
func DefaultConfig() *Config {
	cb := DefaultCircuitBreakerConfig()
	cb.IsTransientError = IsTransientHTTPError
	return &Config{
		Timeout:        30 * time.Second,
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		Retry:          retry.DefaultConfig(),
		UserAgent:      "nicotools/1.0",
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: cb,
		Transport:      DefaultTransportConfig(),
	}
}

// DefaultTransportConfig returns pooling defaults. The tool talks to a handful
// of hosts one request at a time, so the pool stays small.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        8,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
}

// New creates a client without a cookie jar.
func New(cfg *Config) *Client {
	return newClient(cfg, nil, nil)
}

func newClient(cfg *Config, jar http.CookieJar, session *SessionManager) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	transport := newTransport(cfg)

	return &Client{
		base: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			Jar:       jar,
		},
		// Streams run as long as bytes keep arriving; the idle watchdog
		// replaces the overall timeout.
		stream: &http.Client{
			Transport: transport,
			Jar:       jar,
		},
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.RateLimiter),
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreaker),
		session:        session,
	}
}

func newTransport(cfg *Config) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
		MaxIdleConns:          cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.Transport.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.Transport.IdleConnTimeout,
		DisableKeepAlives:     cfg.Transport.DisableKeepAlives,
	}
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// FinalURL is the URL of the last request after redirects.
	FinalURL string
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, urlStr string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, urlStr, nil, nil)
}

// GetQuery performs a GET request with params appended to the URL's query.
func (c *Client) GetQuery(ctx context.Context, urlStr string, params url.Values) (*Response, error) {
	full, err := withQuery(urlStr, params)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, http.MethodGet, full, nil, nil)
}

// PostForm performs a form-encoded POST.
func (c *Client) PostForm(ctx context.Context, urlStr string, form url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodPost, urlStr, []byte(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

// PostBody performs a POST with a raw body of the given content type.
func (c *Client) PostBody(ctx context.Context, urlStr, contentType string, body []byte) (*Response, error) {
	return c.Do(ctx, http.MethodPost, urlStr, body, map[string]string{
		"Content-Type": contentType,
	})
}

// PostJSON POSTs v encoded as JSON.
func (c *Client) PostJSON(ctx context.Context, urlStr string, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.PostBody(ctx, urlStr, "application/json", body)
}

// Do performs a request with retry, rate limiting and circuit breaking, and
// returns the buffered response. Any non-2xx status is an error.
func (c *Client) Do(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*Response, error) {
	var out *Response
	err := c.guarded(ctx, urlStr, func(ctx context.Context) error {
		resp, err := c.send(ctx, c.base, method, urlStr, body, headers)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		out = &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       data,
			FinalURL:   resp.Request.URL.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Once returns a client that shares c's connections, cookies, rate limiter and
// circuit breaker but makes a single attempt per request. Calls that change
// state on the server go through it so that a lost reply is never resent.
func (c *Client) Once() *Client {
	cfg := *c.config
	cfg.Retry = retry.None()
	once := *c
	once.config = &cfg
	return &once
}

// Stream is an open response body being downloaded.
type Stream struct {
	Body io.ReadCloser
	// ContentLength is -1 when the server did not announce a size.
	ContentLength int64
	StatusCode    int
	FinalURL      string
}

// ErrReadTimeout is returned by a stream body that stalled longer than the
// configured read timeout.
var ErrReadTimeout = errors.New("read timed out")

// Stream opens a GET whose body is consumed by the caller. Retries cover
// obtaining the response headers only.
func (c *Client) Stream(ctx context.Context, urlStr string, headers map[string]string) (*Stream, error) {
	var out *Stream
	err := c.guarded(ctx, urlStr, func(ctx context.Context) error {
		streamCtx, cancel := context.WithCancel(ctx)
		resp, err := c.send(streamCtx, c.stream, http.MethodGet, urlStr, nil, headers)
		if err != nil {
			cancel()
			return err
		}
		out = &Stream{
			Body:          newIdleReader(resp.Body, c.config.ReadTimeout, cancel),
			ContentLength: resp.ContentLength,
			StatusCode:    resp.StatusCode,
			FinalURL:      resp.Request.URL.String(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// guarded runs attempt under the circuit breaker, backoff, rate limit and
// retry policy for urlStr's host.
func (c *Client) guarded(ctx context.Context, urlStr string, attempt func(context.Context) error) error {
	domain := extractDomain(urlStr)

	if err := c.circuitBreaker.Allow(domain); err != nil {
		return err
	}
	if err := c.rateLimiter.WaitForBackoff(ctx, urlStr); err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx, urlStr); err != nil {
		return err
	}

	err := retry.Do(ctx, c.config.Retry, c.isRetryableHTTPError, attempt)
	if err != nil {
		c.circuitBreaker.RecordFailure(domain, err)
		return err
	}

	c.rateLimiter.RecordSuccess(urlStr)
	c.circuitBreaker.RecordSuccess(domain)
	return nil
}

// send issues one request and converts throttling and non-2xx statuses into
// typed errors. On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, hc *http.Client, method, urlStr string, body []byte, headers map[string]string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, rdr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", retry.ErrInvalidURL, err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	if c.session != nil {
		for k, v := range c.session.GetHeaders() {
			req.Header.Set(k, v)
		}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		retryAfter := parseRetryAfter(resp.Header)
		if backoff := c.rateLimiter.RecordRateLimitError(urlStr, retryAfter); backoff > retryAfter {
			retryAfter = backoff
		}
		return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: urlStr, Body: data}
	}

	return resp, nil
}

// isRetryableHTTPError retries throttling, 5xx responses and network errors.
func (c *Client) isRetryableHTTPError(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}

	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}

	return true
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date.
func parseRetryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

func withQuery(urlStr string, params url.Values) (string, error) {
	if len(params) == 0 {
		return urlStr, nil
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", retry.ErrInvalidURL, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Cookie returns the named cookie the jar would send to rawURL.
func (c *Client) Cookie(rawURL, name string) (*http.Cookie, bool) {
	if c.base.Jar == nil {
		return nil, false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	for _, ck := range c.base.Jar.Cookies(u) {
		if strings.EqualFold(ck.Name, name) {
			return ck, true
		}
	}
	return nil, false
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.base.CloseIdleConnections()
	return nil
}

// idleReader cancels the underlying request when no bytes arrive within
// timeout.
type idleReader struct {
	rc      io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc
	fired   atomic.Bool
}

func newIdleReader(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) io.ReadCloser {
	if timeout <= 0 {
		return &cancelOnClose{ReadCloser: rc, cancel: cancel}
	}
	r := &idleReader{rc: rc, timeout: timeout, cancel: cancel}
	r.timer = time.AfterFunc(timeout, func() {
		r.fired.Store(true)
		cancel()
	})
	return r
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	if err != nil && err != io.EOF && r.fired.Load() {
		return n, ErrReadTimeout
	}
	return n, err
}

func (r *idleReader) Close() error {
	r.timer.Stop()
	err := r.rc.Close()
	r.cancel()
	return err
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
