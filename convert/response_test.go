package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vertex-claude-proxy/types"
)

func TestConvertResponse_TextOnly(t *testing.T) {
	resp := &types.AnthropicResponse{
		Content:    []types.Content{{Type: "text", Text: "Hello there"}},
		StopReason: "end_turn",
		Usage:      types.Usage{InputTokens: 10, OutputTokens: 5},
	}

	out, err := ConvertResponse(resp, "gpt-4o", time.Unix(100, 0))
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", out.Model)
	assert.Equal(t, "stop", out.Choices[0].FinishReason)
	assert.Equal(t, `"Hello there"`, string(out.Choices[0].Message.Content))
	assert.Equal(t, 10, out.Usage.PromptTokens)
	assert.Equal(t, 5, out.Usage.CompletionTokens)
	assert.Equal(t, 15, out.Usage.TotalTokens)
}

func TestConvertResponse_ToolUse(t *testing.T) {
	resp := &types.AnthropicResponse{
		Content: []types.Content{{
			Type:  "tool_use",
			ID:    "tu_1",
			Name:  "list_directory",
			Input: map[string]interface{}{"path": "/tmp"},
		}},
		StopReason: "tool_use",
	}

	out, err := ConvertResponse(resp, "gpt-4o", time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, "tool_calls", out.Choices[0].FinishReason)
	require.Len(t, out.Choices[0].Message.ToolCalls, 1)
	call := out.Choices[0].Message.ToolCalls[0]
	assert.Equal(t, "tu_1", call.ID)
	assert.Equal(t, "list_directory", call.Function.Name)
	assert.JSONEq(t, `{"path":"/tmp"}`, call.Function.Arguments)
}

func TestMapStopReason(t *testing.T) {
	tests := map[string]string{
		"end_turn":      "stop",
		"max_tokens":    "length",
		"stop_sequence": "stop",
		"tool_use":      "tool_calls",
		"anything_else": "stop",
		"":              "stop",
	}
	for in, want := range tests {
		assert.Equal(t, want, MapStopReason(in), "input %q", in)
	}
}
