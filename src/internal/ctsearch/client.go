// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package ctsearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/H0llyW00dzZ/sslmate-mcp/src/internal/helper/gc"
	x509certs "github.com/H0llyW00dzZ/sslmate-mcp/src/internal/x509/certs"
	"github.com/H0llyW00dzZ/sslmate-mcp/src/logger"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the SSLMate API root.
	DefaultBaseURL = "https://api.sslmate.com/v1"
	// DefaultTimeout bounds each upstream attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultRequestsPerSecond paces calls against the upstream public tier.
	DefaultRequestsPerSecond = 5
	// DefaultBurst is the token bucket size paired with DefaultRequestsPerSecond.
	DefaultBurst = 5

	searchPath      = "/certificates/search"
	certificatePath = "/certificates/"

	// maxAttempts is the first try plus the single retry on transient failures.
	maxAttempts = 2
	// maxErrorBody caps the upstream body kept in an UpstreamError.
	maxErrorBody = 512

	redacted = "[REDACTED]"
)

// Options configures a [Client]. The zero value talks to [DefaultBaseURL]
// without an API key.
type Options struct {
	// BaseURL is the API root, without a trailing slash.
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// UpstreamMaxLimit is the largest record count the upstream serves per call.
	// Zero means MaxLimit.
	UpstreamMaxLimit int
	// RequestsPerSecond paces outgoing calls; a value <= 0 disables pacing.
	RequestsPerSecond float64
	// Burst is the token bucket size used with RequestsPerSecond.
	Burst int
	// Version is appended to the User-Agent header.
	Version string
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// Logger receives skip and retry notices. Nil discards them.
	Logger logger.Logger
	// Now overrides the clock used to derive expiry.
	Now func() time.Time
}

// Client searches the upstream certificate API.
//
// Client is safe for concurrent use by multiple goroutines: its only mutable
// state is the rate limiter, which synchronizes internally.
type Client struct {
	baseURL     string
	apiKey      string
	timeout     time.Duration
	upstreamMax int
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	certs       *x509certs.Certificate
	log         logger.Logger
	now         func() time.Time
}

// NewClient creates a client from opts, applying defaults for zero values.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		apiKey:      opts.APIKey,
		timeout:     opts.Timeout,
		upstreamMax: opts.UpstreamMaxLimit,
		httpClient:  opts.HTTPClient,
		certs:       x509certs.New(),
		log:         opts.Logger,
		now:         opts.Now,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.upstreamMax <= 0 || c.upstreamMax > MaxLimit {
		c.upstreamMax = MaxLimit
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.log == nil {
		c.log = logger.NewMCPLogger(nil, logger.LevelSilent)
	}
	if c.now == nil {
		c.now = time.Now
	}

	c.userAgent = "sslmate-mcp"
	if opts.Version != "" {
		c.userAgent += "/" + opts.Version
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(limit, burst)

	return c
}

// EffectiveLimit returns the record count actually requested for limit:
// the clamped limit, further capped at the upstream maximum.
func (c *Client) EffectiveLimit(limit int) int {
	return min(ClampLimit(limit), c.upstreamMax)
}

// Search runs req against the upstream and returns the normalized records.
//
// Errors are *InvalidArgumentError for a bad domain, *UpstreamError for non-2xx
// responses, *NetworkError for transport failures, or the context error when ctx
// is done. No partial result is returned alongside an error.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := ValidateDomain(req.Domain); err != nil {
		return nil, err
	}
	req = req.Normalize()

	effective := c.EffectiveLimit(req.Limit)
	query := req.Query(effective)

	body, err := c.get(ctx, searchPath, query)
	if err != nil {
		return nil, err
	}

	items, err := splitRecords(body)
	if err != nil {
		return nil, err
	}

	parser := &recordParser{certs: c.certs, now: c.now()}
	result := &SearchResult{
		Query:          req,
		Records:        make([]CertificateRecord, 0, min(len(items), effective)),
		EffectiveLimit: effective,
	}

	skipped := 0
	for _, item := range items {
		if len(result.Records) == effective {
			break
		}
		rec, err := parser.parse(item)
		if err != nil {
			skipped++
			c.log.Warnf("skipping certificate record: %v", err)
			continue
		}
		if rec.IsExpired && !req.IncludeExpired {
			continue
		}
		result.Records = append(result.Records, rec)
	}
	result.Count = len(result.Records)

	c.log.Debugf("search q=%s returned %d record(s), %d skipped", query.Get(paramQuery), result.Count, skipped)
	return result, nil
}

// Certificate fetches a single certificate by its upstream identifier.
func (c *Client) Certificate(ctx context.Context, id string) (*CertificateRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &InvalidArgumentError{Field: "cert_id", Reason: "must not be empty"}
	}

	body, err := c.get(ctx, certificatePath+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	parser := &recordParser{certs: c.certs, now: c.now()}
	rec, err := parser.parse(body)
	if err != nil {
		return nil, fmt.Errorf("certificate %q: %w", id, err)
	}
	return &rec, nil
}

// get performs a GET with the single transient-failure retry and returns the 2xx body.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &NetworkError{Cause: err}
		}

		body, err := c.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}

		var ue *UpstreamError
		if errors.As(err, &ue) {
			return nil, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		if !isTransient(err) {
			break
		}
		if attempt < maxAttempts {
			c.log.Warnf("transient upstream failure, retrying once: %v", c.redact(err.Error()))
		}
	}

	return nil, &NetworkError{Cause: lastErr, Timeout: isTimeout(lastErr)}
}

// do performs one bounded attempt.
func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Get buffer from pool for efficient memory usage
	buf := gc.Default.Get()
	defer func() {
		buf.Reset()         // Reset buffer to prevent data leaks
		gc.Default.Put(buf) // Return buffer to pool for reuse
	}()

	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.upstreamError(resp, buf.Bytes())
	}

	// The pooled buffer is reused after return, so hand back a copy.
	return append([]byte(nil), buf.Bytes()...), nil
}

func (c *Client) upstreamError(resp *http.Response, body []byte) *UpstreamError {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}

	ue := &UpstreamError{
		Status: resp.StatusCode,
		Body:   c.redact(text),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		ue.RateLimited = true
		ue.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), c.now())
	}
	return ue
}

// redact removes the API key from s.
func (c *Client) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, redacted)
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now).Round(time.Second)
	}
	return 0
}

// isTransient reports whether err is worth the single retry.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if isTimeout(err) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
