package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vertex-claude-proxy/classify"
	"vertex-claude-proxy/convert"
	"vertex-claude-proxy/logger"
	"vertex-claude-proxy/perr"
	"vertex-claude-proxy/types"
	"vertex-claude-proxy/upstream"
)

// handleStreaming serves the three live transmission modes (standard,
// buffered, classic) by decoding the upstream SSE body event-by-event
// through a convert.Transformer and writing each resulting OpenAI chunk
// straight back out as a "data: <json>\n\n" SSE frame.
func (h *Handler) handleStreaming(ctx context.Context, w http.ResponseWriter, upstreamBody []byte, requestedModel string, mode classify.Mode, log logger.Logger) {
	logger.LogUpstreamCall(log, h.backend.StreamRawPredictURL(), true)

	resp, err := h.client.Stream(ctx, upstreamBody, h.breaker, log)
	if err != nil {
		h.metrics.FailedRequests.Inc()
		h.writeError(w, err)
		return
	}
	defer resp.Body.Close()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	chunkID := "chatcmpl-" + randomChatID()
	logger.LogStreamStart(log, chunkID)
	transformer := convert.NewTransformer(chunkID, time.Now().Unix())
	var sink *convert.BufferedSink
	if mode == classify.ModeBufferedSSE {
		sink = convert.NewBufferedSink()
	}

	decoder := upstream.NewEventDecoder(upstream.NewIdleTimeoutReader(ctx, resp.Body))

	toolCalls := 0
	finishReason := "stop"
	failed := false

eventLoop:
	for {
		ev, err := decoder.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			failed = true
			h.writeStreamError(w, mode, perr.Wrap(perr.Network, "stream read failed", err))
			break
		}

		if ev.Type == "content_block_start" && ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
			toolCalls++
		}

		chunks, kind, handleErr := transformer.HandleEvent(ev)
		if handleErr != nil {
			failed = true
			h.writeStreamError(w, mode, perr.Wrap(perr.Upstream, "upstream reported a stream error", handleErr))
			break
		}

		boundary := kind == convert.EventBlockBoundary || kind == convert.EventTerminal
		if sink != nil {
			chunks = sink.Process(chunks, boundary)
		}

		for _, c := range chunks {
			if len(c.Choices) > 0 && c.Choices[0].FinishReason != nil {
				finishReason = *c.Choices[0].FinishReason
			}
			h.writeChunk(w, mode, c)
		}
		if flusher != nil {
			flusher.Flush()
		}

		if kind == convert.EventTerminal {
			break eventLoop
		}
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	if flusher != nil {
		flusher.Flush()
	}

	if failed {
		h.metrics.FailedRequests.Inc()
	} else {
		h.metrics.SuccessfulRequests.Inc()
	}
	logger.LogStreamComplete(log, finishReason, toolCalls)
}

// writeChunk frames one OpenAI chunk as an SSE data line, converting to
// the classic-legacy envelope first when that is the selected mode.
func (h *Handler) writeChunk(w http.ResponseWriter, mode classify.Mode, c types.OpenAIStreamChunk) {
	var payload []byte
	if mode == classify.ModeClassicSSE {
		payload, _ = json.Marshal(convert.ToClassic(c))
	} else {
		payload, _ = json.Marshal(c)
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// writeStreamError emits a final SSE error frame once the stream has
// already committed an HTTP 200, since the status line can no longer
// change. [DONE] is written by the caller.
func (h *Handler) writeStreamError(w http.ResponseWriter, mode classify.Mode, err error) {
	envelope := types.NewErrorEnvelope(err.Error(), perr.ErrorType(err), perr.ErrorCode(err))
	payload, _ := json.Marshal(envelope)
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// randomChatID generates the random suffix of a chatcmpl-<random> id, kept
// separate from convert.randomID since that helper is unexported.
func randomChatID() string {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "0000000000000000000000"
	}
	return hex.EncodeToString(buf[:])
}
