// Package httpapi wires the client classifier, transmission policy,
// request/response converters, stream transformer, upstream client, and
// credential provider together behind the proxy's public OpenAI-shaped
// surface: POST /v1/chat/completions, GET /v1/models, and GET /health.
// GET /metrics is registered separately in main.go.
package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"vertex-claude-proxy/circuitbreaker"
	"vertex-claude-proxy/classify"
	"vertex-claude-proxy/config"
	"vertex-claude-proxy/convert"
	"vertex-claude-proxy/internal"
	"vertex-claude-proxy/logger"
	"vertex-claude-proxy/metrics"
	"vertex-claude-proxy/perr"
	"vertex-claude-proxy/types"
	"vertex-claude-proxy/upstream"
)

// Handler serves the proxy's public HTTP surface. One Handler instance is
// shared across all requests.
type Handler struct {
	cfg       *config.Config
	backend   *upstream.VertexBackend
	client    *upstream.Client
	breaker   *circuitbreaker.HealthManager
	metrics   *metrics.Metrics
	loggerCfg logger.LoggerConfig
}

// NewHandler builds a Handler around the proxy's wired components.
func NewHandler(cfg *config.Config, backend *upstream.VertexBackend, client *upstream.Client, breaker *circuitbreaker.HealthManager, m *metrics.Metrics, loggerCfg logger.LoggerConfig) *Handler {
	return &Handler{cfg: cfg, backend: backend, client: client, breaker: breaker, metrics: m, loggerCfg: loggerCfg}
}

// ChatCompletions serves POST /v1/chat/completions.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	ctx := internal.WithRequestID(r.Context(), requestID)
	log := logger.New(ctx, h.loggerCfg)

	if r.Method != http.MethodPost {
		h.writeError(w, perr.New(perr.InvalidRequest, "method not allowed"))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeError(w, perr.Wrap(perr.InvalidRequest, "failed to read request body", err))
		return
	}
	defer r.Body.Close()

	var req types.OpenAIRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, perr.Wrap(perr.InvalidRequest, "request body is not valid JSON", err))
		return
	}

	logger.LogRequestReceived(log, req.Model, len(req.Messages), len(req.Tools), req.Stream)

	classification := classify.Classify(r.Header.Get("User-Agent"), r.Header.Get("Accept"))
	mode := classify.SelectMode(classify.ConfiguredMode(h.cfg.TransmissionMode), req.Stream, classification)
	logger.LogTransmissionMode(log, string(classification.Class), string(mode))

	result, err := convert.ConvertRequest(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, warning := range result.Warnings {
		log.Warn("%s %s", logger.EmojiAlert, warning)
	}

	upstreamBody, err := json.Marshal(result.Request)
	if err != nil {
		h.writeError(w, perr.Wrap(perr.Conversion, "failed to marshal upstream request", err))
		return
	}

	h.metrics.TotalRequests.Inc()

	if mode == classify.ModeNonStreaming {
		h.handleNonStreaming(ctx, w, upstreamBody, req.Model, log)
		return
	}
	h.handleStreaming(ctx, w, upstreamBody, req.Model, mode, log)
}

func (h *Handler) handleNonStreaming(ctx context.Context, w http.ResponseWriter, upstreamBody []byte, requestedModel string, log logger.Logger) {
	logger.LogUpstreamCall(log, h.backend.RawPredictURL(), false)

	raw, err := h.client.Do(ctx, upstreamBody, h.breaker, log)
	if err != nil {
		h.metrics.FailedRequests.Inc()
		h.writeError(w, err)
		return
	}

	var anthropicResp types.AnthropicResponse
	if err := json.Unmarshal(raw, &anthropicResp); err != nil {
		h.metrics.FailedRequests.Inc()
		h.writeError(w, perr.Wrap(perr.Conversion, "failed to parse upstream response", err))
		return
	}

	resp, err := convert.ConvertResponse(&anthropicResp, requestedModel, time.Now())
	if err != nil {
		h.metrics.FailedRequests.Inc()
		h.writeError(w, perr.Wrap(perr.Conversion, "failed to convert upstream response", err))
		return
	}

	h.metrics.SuccessfulRequests.Inc()
	toolCalls := 0
	if len(resp.Choices) > 0 {
		toolCalls = len(resp.Choices[0].Message.ToolCalls)
	}
	logger.LogResponseSummary(log, len(anthropicResp.Content), toolCalls, resp.Choices[0].FinishReason)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// writeError renders err as an OpenAI-shaped error envelope at the status
// perr.HTTPStatus maps it to. Never called after a streaming response has
// already begun: mid-stream failures become an SSE error frame instead of
// an HTTP status change.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := perr.HTTPStatus(err)
	envelope := types.NewErrorEnvelope(err.Error(), perr.ErrorType(err), perr.ErrorCode(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope)
}
