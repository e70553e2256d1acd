package convert

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"vertex-claude-proxy/types"
)

// ConvertResponse translates a non-streaming Anthropic response into an
// OpenAI chat completion response, per spec.md §4.2. echoModel is the
// OpenAI-facing model name to report (the requested model, not the
// upstream Vertex identifier); now is injected so tests can pin it.
func ConvertResponse(resp *types.AnthropicResponse, echoModel string, now time.Time) (*types.OpenAIResponse, error) {
	var textParts []string
	var toolCalls []types.OpenAIToolCall

	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			textParts = append(textParts, block.Text)
		case "tool_use":
			args, err := json.Marshal(block.Input)
			if err != nil {
				return nil, err
			}
			toolCalls = append(toolCalls, types.OpenAIToolCall{
				ID:   block.ID,
				Type: "function",
				Function: types.OpenAIFunctionCall{
					Name:      block.Name,
					Arguments: string(args),
				},
			})
		}
	}

	message := types.OpenAIMessage{
		Role: "assistant",
	}
	if len(textParts) > 0 {
		contentJSON, _ := json.Marshal(strings.Join(textParts, ""))
		message.Content = contentJSON
	}
	if len(toolCalls) > 0 {
		message.ToolCalls = toolCalls
	}

	out := &types.OpenAIResponse{
		ID:      "chatcmpl-" + randomID(),
		Object:  "chat.completion",
		Created: now.Unix(),
		Model:   echoModel,
		Choices: []types.OpenAIChoice{{
			Index:        0,
			Message:      message,
			FinishReason: MapStopReason(resp.StopReason),
		}},
		Usage: types.OpenAIUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}
	return out, nil
}

// MapStopReason maps an Anthropic stop_reason to an OpenAI finish_reason,
// per spec.md §4.2. The mapping is total (every input, including unknown
// values, yields a valid output) and idempotent.
func MapStopReason(stopReason string) string {
	switch stopReason {
	case "end_turn":
		return "stop"
	case "max_tokens":
		return "length"
	case "stop_sequence":
		return "stop"
	case "tool_use":
		return "tool_calls"
	default:
		return "stop"
	}
}

// randomID generates the random suffix of a chatcmpl-<random> id.
func randomID() string {
	var buf [12]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "0000000000000000000000"
	}
	return hex.EncodeToString(buf[:])
}
