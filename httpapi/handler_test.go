package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vertex-claude-proxy/circuitbreaker"
	"vertex-claude-proxy/config"
	"vertex-claude-proxy/logger"
	"vertex-claude-proxy/metrics"
	"vertex-claude-proxy/types"
	"vertex-claude-proxy/upstream"
)

// stubCredentials satisfies upstream.CredentialSource with a fixed token, so
// tests never touch auth.Provider or a real Google endpoint.
type stubCredentials struct{}

func (stubCredentials) AccessToken(ctx context.Context) (string, error) {
	return "test-token", nil
}

// newTestHandler wires a Handler around an httptest.Server standing in for
// the Vertex endpoint, the way main.go wires the real backend.
func newTestHandler(t *testing.T, cfg *config.Config, upstreamServer *httptest.Server) *Handler {
	t.Helper()
	baseURL := upstreamServer.URL + "/v1/projects/test-project/locations/us-east5/publishers/anthropic/models/claude-sonnet-4"
	backend := upstream.NewVertexBackend(baseURL, "claude-sonnet-4@20250514", "", stubCredentials{})
	client := upstream.NewClient(backend, upstream.RetryPolicy{Enabled: cfg.RetryEnabled, MaxAttempts: cfg.MaxRetryAttempts}, metrics.New(prometheus.NewRegistry()))
	breaker := circuitbreaker.NewHealthManager(circuitbreaker.DefaultConfig())
	breaker.InitializeEndpoints([]string{backend.RawPredictURL(), backend.StreamRawPredictURL()})
	m := metrics.New(prometheus.NewRegistry())
	loggerCfg := logger.NewConfigAdapter("error", true)
	return NewHandler(cfg, backend, client, breaker, m, loggerCfg)
}

const anthropicOKBody = `{
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4@20250514",
  "content": [{"type": "text", "text": "Hello there!"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`

// TestChatCompletions_PlainTextNonStreaming sends a plain-text request with
// stream:false and expects a single JSON chat completion whose message
// content matches the upstream text block.
func TestChatCompletions_PlainTextNonStreaming(t *testing.T) {
	upstreamServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, ":rawPredict"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(anthropicOKBody))
	}))
	defer upstreamServer.Close()

	cfg := config.Default()
	h := newTestHandler(t, cfg, upstreamServer)

	reqBody, err := json.Marshal(types.OpenAIRequest{
		Model:  "claude-sonnet-4",
		Stream: false,
		Messages: []types.OpenAIMessage{
			{Role: "user", Content: json.RawMessage(`"hi"`)},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(string(reqBody)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	h.ChatCompletions(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp types.OpenAIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, `"Hello there!"`, string(resp.Choices[0].Message.Content))
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, "claude-sonnet-4", resp.Model)
}

// TestChatCompletions_IDEForcesNonStreaming checks that an IDE-identifying
// User-Agent (PyCharm) forces non-streaming transmission even though the
// request body asks for stream:true, so the response is a single JSON
// object rather than an SSE body.
func TestChatCompletions_IDEForcesNonStreaming(t *testing.T) {
	upstreamServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(anthropicOKBody))
	}))
	defer upstreamServer.Close()

	cfg := config.Default()
	h := newTestHandler(t, cfg, upstreamServer)

	reqBody, err := json.Marshal(types.OpenAIRequest{
		Model:  "claude-sonnet-4",
		Stream: true,
		Messages: []types.OpenAIMessage{
			{Role: "user", Content: json.RawMessage(`"hi"`)},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(string(reqBody)))
	req.Header.Set("User-Agent", "PyCharm/2024.1")
	w := httptest.NewRecorder()

	h.ChatCompletions(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var resp types.OpenAIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, `"Hello there!"`, string(resp.Choices[0].Message.Content))
}
