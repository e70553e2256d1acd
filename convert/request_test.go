package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vertex-claude-proxy/types"
)

func rawString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func TestConvertRequest_SystemMessageLifting(t *testing.T) {
	req := types.OpenAIRequest{
		Model: "gpt-4o",
		Messages: []types.OpenAIMessage{
			{Role: "system", Content: rawString("You are concise.")},
			{Role: "user", Content: rawString("Hi")},
		},
	}

	result, err := ConvertRequest(req)
	require.NoError(t, err)
	require.Len(t, result.Request.System, 1)
	assert.Equal(t, "You are concise.", result.Request.System[0].Text)
	require.Len(t, result.Request.Messages, 1)
	assert.Equal(t, "user", result.Request.Messages[0].Role)
}

func TestConvertRequest_DefaultMaxTokens(t *testing.T) {
	req := types.OpenAIRequest{
		Model:    "gpt-4o",
		Messages: []types.OpenAIMessage{{Role: "user", Content: rawString("hi")}},
	}
	result, err := ConvertRequest(req)
	require.NoError(t, err)
	assert.Equal(t, defaultMaxTokens, result.Request.MaxTokens)
}

func TestConvertRequest_ToolCallArgumentsMalformedDegradesToWarning(t *testing.T) {
	req := types.OpenAIRequest{
		Model: "gpt-4o",
		Messages: []types.OpenAIMessage{
			{Role: "user", Content: rawString("run it")},
			{
				Role: "assistant",
				ToolCalls: []types.OpenAIToolCall{{
					ID:   "call_1",
					Type: "function",
					Function: types.OpenAIFunctionCall{
						Name:      "list_directory",
						Arguments: "{not valid json",
					},
				}},
			},
		},
	}

	result, err := ConvertRequest(req)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)

	blocks := result.Request.Messages[1].Content.([]types.Content)
	require.Len(t, blocks, 1)
	assert.Equal(t, "tool_use", blocks[0].Type)
	assert.Equal(t, "{not valid json", blocks[0].Input["_raw"])
}

func TestConvertRequest_ToolMessagesPackIntoUserToolResult(t *testing.T) {
	req := types.OpenAIRequest{
		Model: "gpt-4o",
		Messages: []types.OpenAIMessage{
			{Role: "user", Content: rawString("run it")},
			{Role: "assistant", ToolCalls: []types.OpenAIToolCall{{ID: "call_1", Type: "function", Function: types.OpenAIFunctionCall{Name: "f", Arguments: "{}"}}}},
			{Role: "tool", ToolCallID: "call_1", Content: rawString("result text")},
		},
	}

	result, err := ConvertRequest(req)
	require.NoError(t, err)
	require.Len(t, result.Request.Messages, 3)
	last := result.Request.Messages[2]
	assert.Equal(t, "user", last.Role)
	blocks := last.Content.([]types.Content)
	require.Len(t, blocks, 1)
	assert.Equal(t, "tool_result", blocks[0].Type)
	assert.Equal(t, "call_1", blocks[0].ToolUseID)
	assert.Equal(t, "result text", blocks[0].ToolInput)
}

func TestConvertImageURL_DataURIDecodesToBase64Block(t *testing.T) {
	source, err := convertImageURL("data:image/png;base64,aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "base64", source.Type)
	assert.Equal(t, "image/png", source.MediaType)
	assert.Equal(t, "aGVsbG8=", source.Data)
}

func TestConvertImageURL_RemoteURLRemainsURLBlock(t *testing.T) {
	source, err := convertImageURL("https://example.com/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "url", source.Type)
	assert.Equal(t, "https://example.com/cat.png", source.URL)
}

func TestConvertToolChoice(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
		want json.RawMessage
	}{
		{"auto omitted", rawString("auto"), nil},
		{"none", rawString("none"), mustMarshal(t, map[string]string{"type": "none"})},
		{"required maps to any", rawString("required"), mustMarshal(t, map[string]string{"type": "any"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := convertToolChoice(tt.raw)
			assert.Equal(t, string(tt.want), string(got))
		})
	}
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestConvertRequest_FunctionToolChoiceByName(t *testing.T) {
	raw, _ := json.Marshal(map[string]interface{}{
		"type":     "function",
		"function": map[string]string{"name": "list_directory"},
	})
	got := convertToolChoice(raw)
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(got, &decoded))
	assert.Equal(t, "tool", decoded["type"])
	assert.Equal(t, "list_directory", decoded["name"])
}
