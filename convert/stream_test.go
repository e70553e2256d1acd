package convert

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vertex-claude-proxy/types"
)

func textDeltaEvent(index int, text string) types.AnthropicEvent {
	return types.AnthropicEvent{Type: "content_block_delta", Index: index, Delta: &types.AnthropicDelta{DeltaType: "text_delta", Text: text}}
}

func sampleTextEvents() []types.AnthropicEvent {
	return []types.AnthropicEvent{
		{Type: "message_start", Message: &types.AnthropicResponse{ID: "msg_1", Model: "claude-sonnet-4@20250514"}},
		{Type: "content_block_start", Index: 0, ContentBlock: &types.Content{Type: "text"}},
		textDeltaEvent(0, "Hello"),
		textDeltaEvent(0, " world"),
		{Type: "content_block_stop", Index: 0},
		{Type: "message_delta", Delta: &types.AnthropicDelta{StopReason: "end_turn"}},
		{Type: "message_stop"},
	}
}

func TestTransformer_RoleChunkAlwaysFirst(t *testing.T) {
	tr := NewTransformer("chatcmpl-1", 100)
	chunks, _, err := tr.HandleEvent(sampleTextEvents()[0])
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "assistant", chunks[0].Choices[0].Delta.Role)
}

func TestTransformer_TextDeltasConcatenate(t *testing.T) {
	tr := NewTransformer("chatcmpl-1", 100)
	var textOut strings.Builder
	var finish *string

	for _, ev := range sampleTextEvents() {
		chunks, _, err := tr.HandleEvent(ev)
		require.NoError(t, err)
		for _, c := range chunks {
			textOut.WriteString(c.Choices[0].Delta.Content)
			if c.Choices[0].FinishReason != nil {
				finish = c.Choices[0].FinishReason
			}
		}
	}

	assert.Equal(t, "Hello world", textOut.String())
	require.NotNil(t, finish)
	assert.Equal(t, "stop", *finish)
}

func TestTransformer_ToolUseBlockAssignsIndexAndStreamsArguments(t *testing.T) {
	events := []types.AnthropicEvent{
		{Type: "message_start", Message: &types.AnthropicResponse{Model: "claude-sonnet-4@20250514"}},
		{Type: "content_block_start", Index: 0, ContentBlock: &types.Content{Type: "tool_use", ID: "tu_1", Name: "list_directory"}},
		{Type: "content_block_delta", Index: 0, Delta: &types.AnthropicDelta{DeltaType: "input_json_delta", PartialJSON: `{"pa`}},
		{Type: "content_block_delta", Index: 0, Delta: &types.AnthropicDelta{DeltaType: "input_json_delta", PartialJSON: `th":"/tmp"}`}},
		{Type: "content_block_stop", Index: 0},
		{Type: "message_delta", Delta: &types.AnthropicDelta{StopReason: "tool_use"}},
		{Type: "message_stop"},
	}

	tr := NewTransformer("chatcmpl-1", 100)
	var argsOut strings.Builder
	var finish *string
	sawStart := false

	for _, ev := range events {
		chunks, _, err := tr.HandleEvent(ev)
		require.NoError(t, err)
		for _, c := range chunks {
			for _, tc := range c.Choices[0].Delta.ToolCalls {
				assert.Equal(t, 0, tc.Index)
				if tc.ID == "tu_1" {
					sawStart = true
					assert.Equal(t, "list_directory", tc.Function.Name)
				}
				argsOut.WriteString(tc.Function.Arguments)
			}
			if c.Choices[0].FinishReason != nil {
				finish = c.Choices[0].FinishReason
			}
		}
	}

	assert.True(t, sawStart)
	assert.Equal(t, `{"path":"/tmp"}`, argsOut.String())
	require.NotNil(t, finish)
	assert.Equal(t, "tool_calls", *finish)
}

// TestStreamNonStreamEquivalence exercises the shared-accumulator property:
// concatenating the live Transformer's text deltas equals the text Collect
// assembles from the same event sequence into a single content block.
func TestStreamNonStreamEquivalence(t *testing.T) {
	events := sampleTextEvents()

	tr := NewTransformer("chatcmpl-1", 100)
	var liveText strings.Builder
	for _, ev := range events {
		chunks, _, err := tr.HandleEvent(ev)
		require.NoError(t, err)
		for _, c := range chunks {
			liveText.WriteString(c.Choices[0].Delta.Content)
		}
	}

	collected, err := Collect(events)
	require.NoError(t, err)
	require.Len(t, collected.Content, 1)
	assert.Equal(t, collected.Content[0].Text, liveText.String())
}

func TestBufferedSink_HoldsUnderThresholdAndFlushesOnBoundary(t *testing.T) {
	sink := NewBufferedSink()

	short := []types.OpenAIStreamChunk{{Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{Content: "hi"}}}}}
	out := sink.Process(short, false)
	assert.Empty(t, out, "short text under threshold should not flush yet")

	out = sink.Process(nil, true)
	require.Len(t, out, 1)
	assert.Equal(t, "hi", out[0].Choices[0].Delta.Content)
}

func TestBufferedSink_SentenceTerminatorFlushesImmediately(t *testing.T) {
	sink := NewBufferedSink()
	chunks := []types.OpenAIStreamChunk{{Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{Content: "Done."}}}}}
	out := sink.Process(chunks, false)
	require.Len(t, out, 1)
	assert.Equal(t, "Done.", out[0].Choices[0].Delta.Content)
}

func TestBufferedSink_ToolCallNeverBuffered(t *testing.T) {
	sink := NewBufferedSink()
	sink.Process([]types.OpenAIStreamChunk{{Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{Content: "partial"}}}}}, false)

	toolChunk := types.OpenAIStreamChunk{Choices: []types.OpenAIStreamChoice{{Delta: types.OpenAIStreamDelta{ToolCalls: []types.OpenAIStreamToolCallDelta{{Index: 0, ID: "tu_1"}}}}}}
	out := sink.Process([]types.OpenAIStreamChunk{toolChunk}, false)

	require.Len(t, out, 2, "pending text flushes before the tool-call chunk passes through")
	assert.Equal(t, "partial", out[0].Choices[0].Delta.Content)
	assert.Equal(t, "tu_1", out[1].Choices[0].Delta.ToolCalls[0].ID)
}

func TestToClassic(t *testing.T) {
	finish := "stop"
	c := types.OpenAIStreamChunk{
		ID: "chatcmpl-1", Created: 100, Model: "gpt-4o",
		Choices: []types.OpenAIStreamChoice{{Index: 0, Delta: types.OpenAIStreamDelta{Content: "hi"}, FinishReason: &finish}},
	}
	out := ToClassic(c)
	assert.Equal(t, "text_completion", out.Object)
	require.Len(t, out.Choices, 1)
	assert.Equal(t, "hi", out.Choices[0].Text)
	require.NotNil(t, out.Choices[0].FinishReason)
	assert.Equal(t, "stop", *out.Choices[0].FinishReason)
}
