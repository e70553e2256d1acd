package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vertex-claude-proxy/circuitbreaker"
	"vertex-claude-proxy/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// stubBackend points both RawPredictURL and StreamRawPredictURL at a single
// test server and authorizes every request with a fixed bearer token.
type stubBackend struct {
	url string
}

func (b *stubBackend) RawPredictURL() string       { return b.url }
func (b *stubBackend) StreamRawPredictURL() string { return b.url }
func (b *stubBackend) DisplayModel() string        { return "claude-sonnet-4@20250514" }
func (b *stubBackend) Authorize(ctx context.Context, set func(key, value string)) error {
	set("Authorization", "Bearer test-token")
	return nil
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

// TestClient_QuotaErrorRetriedOnceThenSucceeds exercises spec.md §8 scenario
// 6: upstream returns a quota-exhausted 429 twice, then 200; the call
// succeeds overall and retry_attempts/quota_errors both increment by 2.
func TestClient_QuotaErrorRetriedOnceThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":{"message":"RESOURCE_EXHAUSTED: quota exceeded"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"type":"message","content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer server.Close()

	m := newTestMetrics()
	client := NewClient(&stubBackend{url: server.URL}, RetryPolicy{Enabled: true, MaxAttempts: 5}, m)
	breaker := circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig())
	breaker.InitializeEndpoints([]string{server.URL})

	body, err := client.Do(context.Background(), []byte(`{}`), breaker, nil)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"ok"`)
	assert.Equal(t, int32(3), calls.Load())
	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.RetryAttempts)
	assert.Equal(t, int64(2), snap.QuotaErrors)
}

// TestClient_RetriesSurviveOwnCircuitBreakerThreshold asserts that a single
// call's own consecutive retries cannot trip the breaker against itself:
// with the default FailureThreshold of 2, two failed attempts inside this
// call's own retry loop must not block its own 3rd (successful) attempt.
func TestClient_RetriesSurviveOwnCircuitBreakerThreshold(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestMetrics()
	client := NewClient(&stubBackend{url: server.URL}, RetryPolicy{Enabled: true, MaxAttempts: 3}, m)
	breaker := circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig())
	breaker.InitializeEndpoints([]string{server.URL})

	_, err := client.Do(context.Background(), []byte(`{}`), breaker, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

// TestClient_NonRetryable4xxFailsImmediately asserts spec.md §4.6's "4xx
// other than 408/429 are not retried."
func TestClient_NonRetryable4xxFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad request"}`))
	}))
	defer server.Close()

	m := newTestMetrics()
	client := NewClient(&stubBackend{url: server.URL}, RetryPolicy{Enabled: true, MaxAttempts: 5}, m)

	_, err := client.Do(context.Background(), []byte(`{}`), nil, nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

// TestClient_RetriesOn5xxThenSucceeds asserts transient 5xx responses are
// retried per spec.md §4.6.
func TestClient_RetriesOn5xxThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	m := newTestMetrics()
	client := NewClient(&stubBackend{url: server.URL}, RetryPolicy{Enabled: true, MaxAttempts: 3}, m)

	_, err := client.Do(context.Background(), []byte(`{}`), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
