package upstream

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"vertex-claude-proxy/circuitbreaker"
	"vertex-claude-proxy/logger"
	"vertex-claude-proxy/metrics"
	"vertex-claude-proxy/perr"
)

const (
	connectTimeout        = 10 * time.Second
	nonStreamingTimeout   = 120 * time.Second
	streamIdleTimeout      = 60 * time.Second
	backoffBase           = 200 * time.Millisecond
	backoffFactor         = 2.0
	backoffCap            = 5 * time.Second
)

// RetryPolicy controls whether and how many times the Client retries a
// failed call, mirroring config.Config's retry_enabled / max_retry_attempts
// fields without the client needing to import config.
type RetryPolicy struct {
	Enabled     bool
	MaxAttempts int
}

// Client is the Upstream Client (spec §4.6). One Client instance is shared
// across all requests; its *http.Client connection pool is thread-safe by
// construction (spec.md §5).
type Client struct {
	backend Backend
	http    *http.Client
	retry   RetryPolicy
	metrics *metrics.Metrics
}

// NewClient builds a Client around backend, using separate timeouts for the
// connect phase (handled by the transport) and the overall non-streaming
// call (handled by context). Streaming calls instead enforce an idle
// timeout between received chunks; see Stream.
func NewClient(backend Backend, retry RetryPolicy, m *metrics.Metrics) *Client {
	transport := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: connectTimeout}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Client{
		backend: backend,
		http:    &http.Client{Transport: transport},
		retry:   retry,
		metrics: m,
	}
}

// Do sends a non-streaming Vertex request body and returns the raw response
// bytes on success, retrying transient failures per spec.md §4.6.
func (c *Client) Do(ctx context.Context, body []byte, breaker *circuitbreaker.HealthManager, log logger.Logger) ([]byte, error) {
	url := c.backend.RawPredictURL()
	ctx, cancel := context.WithTimeout(ctx, nonStreamingTimeout)
	defer cancel()

	resp, err := c.doWithRetry(ctx, url, body, "application/json", breaker, log)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Stream sends a streaming Vertex request body and returns the live
// response body for the caller to frame as SSE. The idle timeout between
// chunks is enforced by the caller reading resp.Body, not here: Go's
// http.Client has no aggregate timeout knob compatible with a long-lived
// stream, so the reader wraps resp.Body in an idle-timeout reader.
func (c *Client) Stream(ctx context.Context, body []byte, breaker *circuitbreaker.HealthManager, log logger.Logger) (*http.Response, error) {
	url := c.backend.StreamRawPredictURL()
	return c.doWithRetry(ctx, url, body, "text/event-stream", breaker, log)
}

func (c *Client) doWithRetry(ctx context.Context, url string, body []byte, accept string, breaker *circuitbreaker.HealthManager, log logger.Logger) (*http.Response, error) {
	maxAttempts := 1
	if c.retry.Enabled && c.retry.MaxAttempts > 0 {
		maxAttempts = c.retry.MaxAttempts
	}

	// The breaker gates whether this call starts at all, not whether each
	// of its own retry attempts may proceed: RecordFailure opens the
	// circuit as soon as FailureCount reaches the configured threshold,
	// which a single call's own consecutive retries can reach well before
	// its last (possibly successful) attempt runs. Consulting IsHealthy
	// again inside the loop would let one call's retries trip its own
	// breaker and abort itself.
	if breaker != nil && !breaker.IsHealthy(url) {
		return nil, perr.New(perr.Upstream, "upstream circuit breaker is open")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.attempt(ctx, url, body, accept)
		if err == nil {
			if breaker != nil {
				breaker.RecordSuccess(url)
			}
			return resp, nil
		}
		lastErr = err

		if breaker != nil {
			breaker.RecordFailure(url)
		}

		pe, _ := perr.As(err)
		if pe != nil && pe.Kind == perr.QuotaExceeded {
			if c.metrics != nil {
				c.metrics.QuotaErrors.Inc()
			}
			if log != nil {
				logger.LogQuotaExceeded(log, attempt)
			}
		}
		if !retryable(pe) || attempt == maxAttempts {
			break
		}

		if c.metrics != nil {
			c.metrics.RetryAttempts.Inc()
		}

		delay := fullJitterBackoff(attempt)
		if log != nil {
			status := 0
			if pe != nil {
				status = pe.UpstreamStatus
			}
			logger.LogUpstreamRetry(log, attempt, maxAttempts, status, delay.Milliseconds())
		}

		select {
		case <-ctx.Done():
			return nil, perr.Wrap(perr.Timeout, "context cancelled during retry backoff", ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, url string, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, perr.Wrap(perr.Conversion, "failed to build upstream request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)

	if err := c.backend.Authorize(ctx, req.Header.Set); err != nil {
		return nil, perr.Wrap(perr.Authentication, "failed to authorize upstream request", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, perr.Wrap(perr.Timeout, "upstream request timed out", err)
		}
		return nil, perr.Wrap(perr.Network, "upstream request failed", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	errBody, _ := io.ReadAll(resp.Body)
	return nil, perr.WrapUpstream(resp.StatusCode, string(errBody))
}

// retryable reports whether err (already classified into the perr
// taxonomy) should trigger another attempt: transport errors, 5xx, and 429
// only (spec.md §4.6: "4xx other than 408/429 are not retried").
func retryable(pe *perr.Error) bool {
	if pe == nil {
		return false
	}
	switch pe.Kind {
	case perr.Network, perr.Timeout, perr.QuotaExceeded:
		return true
	case perr.Upstream:
		if pe.UpstreamStatus >= 500 {
			return true
		}
		return pe.UpstreamStatus == http.StatusTooManyRequests || pe.UpstreamStatus == http.StatusRequestTimeout
	default:
		return false
	}
}

// fullJitterBackoff computes a delay in [0, base*factor^(attempt-1)]
// capped at backoffCap, per spec.md §4.6's "Backoff is exponential with
// base 200 ms, factor 2, full jitter, capped at 5 s."
func fullJitterBackoff(attempt int) time.Duration {
	max := time.Duration(float64(backoffBase) * math.Pow(backoffFactor, float64(attempt-1)))
	if max > backoffCap {
		max = backoffCap
	}
	if max <= 0 {
		return 0
	}
	return time.Duration(randInt63n(int64(max)))
}

// randInt63n returns a cryptographically-seeded pseudo-random value in
// [0, n) using crypto/rand rather than an unseeded math/rand source, so
// concurrent goroutines don't share predictable backoff jitter.
func randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return n / 2
	}
	v := int64(binary.BigEndian.Uint64(buf[:]) &^ (1 << 63))
	return v % n
}

// IdleTimeoutReader wraps an io.Reader so reads that stall for longer than
// idle are reported as an error, implementing spec.md §5's "streaming calls
// ... enforce a 60 s idle timeout between received bytes."
type IdleTimeoutReader struct {
	ctx    context.Context
	reader io.Reader
	idle   time.Duration
}

// NewIdleTimeoutReader wraps r with the fixed 60s streaming idle timeout.
func NewIdleTimeoutReader(ctx context.Context, r io.Reader) *IdleTimeoutReader {
	return &IdleTimeoutReader{ctx: ctx, reader: r, idle: streamIdleTimeout}
}

func (r *IdleTimeoutReader) Read(p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := r.reader.Read(p)
		done <- result{n, err}
	}()

	timer := time.NewTimer(r.idle)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.n, res.err
	case <-timer.C:
		return 0, perr.New(perr.Timeout, "upstream stream idle timeout exceeded")
	case <-r.ctx.Done():
		return 0, perr.Wrap(perr.Timeout, "stream cancelled", r.ctx.Err())
	}
}
