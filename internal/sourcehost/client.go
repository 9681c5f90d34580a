// Package sourcehost wraps outbound HTTP calls to the public source-hosting
// API: header injection, rate-limit-aware retry/back-off, and a pre-emptive
// token-bucket limiter so bursts never trip the upstream's own limiter.
package sourcehost

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/skillnest/registry/internal/apierr"
	"github.com/skillnest/registry/internal/telemetry"
)

// Options configures a Client. Unknown fields are simply zero-valued; there
// is no dynamic options bag — the struct itself is the enumerated set.
type Options struct {
	APIURL            string
	Token             string
	UserAgent         string
	MaxRetries        int
	RetryableStatuses map[int]bool
	MaxDelay          time.Duration
	RequestTimeout    time.Duration
	RateLimitPerSec   float64
}

// DefaultOptions returns the documented defaults for every field Options leaves zero.
func DefaultOptions() Options {
	return Options{
		MaxRetries: 3,
		RetryableStatuses: map[int]bool{
			http.StatusRequestTimeout:     true,
			http.StatusTooManyRequests:    true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:         true,
			http.StatusServiceUnavailable: true,
			http.StatusGatewayTimeout:     true,
		},
		MaxDelay:        30 * time.Second,
		RequestTimeout:  15 * time.Second,
		RateLimitPerSec: 5,
	}
}

// Client is the single entry point for outbound source-host HTTP calls.
type Client struct {
	opts       Options
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// New creates a Client, filling any zero field of opts with its documented default.
func New(opts Options, logger *slog.Logger) *Client {
	d := DefaultOptions()
	if opts.MaxRetries == 0 {
		opts.MaxRetries = d.MaxRetries
	}
	if opts.RetryableStatuses == nil {
		opts.RetryableStatuses = d.RetryableStatuses
	}
	if opts.MaxDelay == 0 {
		opts.MaxDelay = d.MaxDelay
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = d.RequestTimeout
	}
	if opts.RateLimitPerSec == 0 {
		opts.RateLimitPerSec = d.RateLimitPerSec
	}

	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimitPerSec), int(opts.RateLimitPerSec)+1),
		logger:     logger,
	}
}

// Request describes one outbound call, relative to opts.APIURL.
type Request struct {
	Method string
	Path   string // joined onto opts.APIURL
	Body   io.Reader
}

// Do executes req with header injection and the documented retry/back-off
// policy, returning the response body already read into memory (source-host
// payloads here are bounded JSON documents, never large blobs).
func (c *Client) Do(ctx context.Context, req Request) ([]byte, int, error) {
	url := c.opts.APIURL + req.Path

	var lastBody []byte
	var lastStatus int

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.MaxInterval = c.opts.MaxDelay
	eb.Multiplier = 2

	attempts := c.opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, apierr.Wrap(apierr.KindTransient, "waiting for rate limiter", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, req.Method, url, req.Body)
		if err != nil {
			return nil, 0, apierr.Wrap(apierr.KindInternal, "building source-host request", err)
		}
		c.injectHeaders(httpReq)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			telemetry.SourceHostRequestsTotal.WithLabelValues("network_error").Inc()
			if attempt == attempts-1 {
				return nil, 0, apierr.Wrap(apierr.KindUpstreamUnavailable, "calling source host", err)
			}
			telemetry.SourceHostRetriesTotal.Inc()
			c.sleep(ctx, eb.NextBackOff())
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return nil, resp.StatusCode, apierr.Wrap(apierr.KindTransient, "reading source-host response", readErr)
		}

		telemetry.SourceHostRequestsTotal.WithLabelValues(statusClass(resp.StatusCode)).Inc()
		lastBody, lastStatus = body, resp.StatusCode

		if !c.shouldRetry(resp) {
			return body, resp.StatusCode, nil
		}

		if attempt == attempts-1 {
			break
		}

		telemetry.SourceHostRetriesTotal.Inc()
		delay := c.backoffDelay(resp, eb)
		c.logger.Warn("retrying source-host request", "status", resp.StatusCode, "delay", delay, "attempt", attempt+1)
		c.sleep(ctx, delay)
	}

	return lastBody, lastStatus, apierr.New(apierr.KindUpstreamUnavailable, fmt.Sprintf("source host returned HTTP %d after retries", lastStatus))
}

func (c *Client) injectHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if c.opts.Token != "" && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
}

// shouldRetry reports whether resp's status is one this client retries:
// the configured transient-status set, or a rate-limited 403.
func (c *Client) shouldRetry(resp *http.Response) bool {
	if c.opts.RetryableStatuses[resp.StatusCode] {
		return true
	}
	if resp.StatusCode == http.StatusForbidden {
		if resp.Header.Get("x-ratelimit-remaining") == "0" || resp.Header.Get("Retry-After") != "" {
			return true
		}
	}
	return false
}

// backoffDelay honors Retry-After, then x-ratelimit-reset, then falls back
// to exponential-with-jitter capped at opts.MaxDelay.
func (c *Client) backoffDelay(resp *http.Response, eb *backoff.ExponentialBackOff) time.Duration {
	if ra := resp.Header.Get("Retry-After"); ra != "" {
		if d, ok := parseRetryAfter(ra); ok {
			return capDelay(d, c.opts.MaxDelay)
		}
	}
	if reset := resp.Header.Get("x-ratelimit-reset"); reset != "" {
		if epoch, err := strconv.ParseInt(reset, 10, 64); err == nil {
			d := time.Until(time.Unix(epoch, 0))
			if d > 0 {
				return capDelay(d, c.opts.MaxDelay)
			}
		}
	}

	d := eb.NextBackOff()
	jitter := time.Duration(rand.Intn(250)) * time.Millisecond
	return capDelay(d+jitter, c.opts.MaxDelay)
}

func capDelay(d, max time.Duration) time.Duration {
	if d > max {
		return max
	}
	if d < 0 {
		return 0
	}
	return d
}

func parseRetryAfter(v string) (time.Duration, bool) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t), true
	}
	return 0, false
}

func (c *Client) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
