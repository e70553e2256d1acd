package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"vertex-claude-proxy/types"
)

// Transformer is the Stream Transformer (spec.md §4.3): a per-call state
// machine that consumes one upstream Anthropic SSE event at a time and
// emits zero or more OpenAI-shaped stream chunks. id/created are frozen at
// construction so every chunk of one call carries the same chatcmpl-<id>
// and created timestamp, matching OpenAI's own behavior.
//
// HandleEvent (the live SSE modes) and Collect (a whole-sequence replay)
// accumulate content blocks by index in the same way, in separate code,
// which gives the stream/non-stream equivalence property: concatenating
// every HandleEvent text delta for a call yields the same text Collect
// assembles into a single content block.
//
// Grounded on the teacher's proxy/stream.go ReconstructResponseFromChunks,
// which accumulates tool call fragments by index in the opposite
// direction (OpenAI chunks -> one OpenAI response); this type walks
// Anthropic events -> OpenAI chunks instead, and keeps the same
// accumulate-by-index idiom for tool_use blocks.
type Transformer struct {
	id      string
	created int64
	model   string

	roleEmitted bool
	blocks      map[int]*blockState
	toolIndex   int
	stopReason  string
}

// blockState tracks one in-flight Anthropic content block by its index.
type blockState struct {
	kind        string // "text" or "tool_use"
	toolIndex   int
	textAccum   strings.Builder
	jsonAccum   strings.Builder
}

// EventKind tells the caller what just happened, so it knows when to force
// a buffered-mode flush (spec.md §4.4: buffered SSE flushes on a
// block boundary, not only on the length/terminator triggers).
type EventKind int

const (
	EventNormal EventKind = iota
	EventBlockBoundary
	EventTerminal
)

// NewTransformer starts a fresh state machine for one call. id and created
// are generated by the caller (chatcmpl-<random>, time.Now().Unix()) once
// per call, before the first event arrives.
func NewTransformer(id string, created int64) *Transformer {
	return &Transformer{id: id, created: created, blocks: make(map[int]*blockState)}
}

// HandleEvent decodes one upstream SSE event and returns the OpenAI chunks
// it produces (often zero or one, occasionally more is never needed since
// each Anthropic event maps to at most one OpenAI delta), the kind of
// event it was, and an error if the event itself was an in-stream failure.
func (t *Transformer) HandleEvent(ev types.AnthropicEvent) ([]types.OpenAIStreamChunk, EventKind, error) {
	switch ev.Type {
	case "message_start":
		if ev.Message != nil && ev.Message.Model != "" {
			t.model = ev.Message.Model
		}
		if t.roleEmitted {
			return nil, EventNormal, nil
		}
		t.roleEmitted = true
		return []types.OpenAIStreamChunk{t.chunk(types.OpenAIStreamDelta{Role: "assistant"}, nil)}, EventNormal, nil

	case "content_block_start":
		if ev.ContentBlock == nil {
			return nil, EventNormal, nil
		}
		state := &blockState{kind: ev.ContentBlock.Type}
		t.blocks[ev.Index] = state

		if ev.ContentBlock.Type == "tool_use" {
			state.toolIndex = t.toolIndex
			t.toolIndex++
			delta := types.OpenAIStreamDelta{ToolCalls: []types.OpenAIStreamToolCallDelta{{
				Index: state.toolIndex,
				ID:    ev.ContentBlock.ID,
				Type:  "function",
				Function: types.OpenAIStreamFunctionDelta{
					Name: ev.ContentBlock.Name,
				},
			}}}
			return []types.OpenAIStreamChunk{t.chunk(delta, nil)}, EventNormal, nil
		}
		return nil, EventNormal, nil

	case "content_block_delta":
		state := t.blocks[ev.Index]
		if state == nil || ev.Delta == nil {
			return nil, EventNormal, nil
		}
		switch ev.Delta.DeltaType {
		case "text_delta":
			state.textAccum.WriteString(ev.Delta.Text)
			if ev.Delta.Text == "" {
				return nil, EventNormal, nil
			}
			delta := types.OpenAIStreamDelta{Content: ev.Delta.Text}
			return []types.OpenAIStreamChunk{t.chunk(delta, nil)}, EventNormal, nil
		case "input_json_delta":
			state.jsonAccum.WriteString(ev.Delta.PartialJSON)
			delta := types.OpenAIStreamDelta{ToolCalls: []types.OpenAIStreamToolCallDelta{{
				Index:    state.toolIndex,
				Function: types.OpenAIStreamFunctionDelta{Arguments: ev.Delta.PartialJSON},
			}}}
			return []types.OpenAIStreamChunk{t.chunk(delta, nil)}, EventNormal, nil
		}
		return nil, EventNormal, nil

	case "content_block_stop":
		return nil, EventBlockBoundary, nil

	case "message_delta":
		if ev.Delta != nil && ev.Delta.StopReason != "" {
			t.stopReason = ev.Delta.StopReason
		}
		return nil, EventNormal, nil

	case "message_stop":
		reason := MapStopReason(t.stopReason)
		chunk := t.chunk(types.OpenAIStreamDelta{}, &reason)
		return []types.OpenAIStreamChunk{chunk}, EventTerminal, nil

	case "ping":
		return nil, EventNormal, nil

	case "error":
		msg := "upstream stream error"
		if ev.Error != nil && ev.Error.Message != "" {
			msg = ev.Error.Message
		}
		return nil, EventTerminal, fmt.Errorf("%s", msg)

	default:
		return nil, EventNormal, nil
	}
}

// chunk builds one OpenAIStreamChunk carrying this call's frozen id/model/
// created plus the given delta and optional finish reason.
func (t *Transformer) chunk(delta types.OpenAIStreamDelta, finishReason *string) types.OpenAIStreamChunk {
	return types.OpenAIStreamChunk{
		ID:      t.id,
		Object:  "chat.completion.chunk",
		Created: t.created,
		Model:   t.model,
		Choices: []types.OpenAIStreamChoice{{
			Index:        0,
			Delta:        delta,
			FinishReason: finishReason,
		}},
	}
}

// Collect replays a full sequence of Anthropic events with the same
// per-index block accumulation Transformer uses for the live SSE modes,
// and returns the single AnthropicResponse they add up to. The HTTP
// handler's non-streaming mode does not use it (it calls :rawPredict and
// converts that JSON reply directly); Collect is what the stream/non-stream
// equivalence test compares the live Transformer output against.
func Collect(events []types.AnthropicEvent) (*types.AnthropicResponse, error) {
	resp := &types.AnthropicResponse{Type: "message", Role: "assistant"}

	type block struct {
		content   types.Content
		jsonAccum strings.Builder
	}
	blocks := make(map[int]*block)
	var order []int

	for _, ev := range events {
		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				resp.ID = ev.Message.ID
				resp.Model = ev.Message.Model
				resp.Usage.InputTokens = ev.Message.Usage.InputTokens
			}
		case "content_block_start":
			if ev.ContentBlock == nil {
				continue
			}
			b := &block{content: types.Content{Type: ev.ContentBlock.Type}}
			if ev.ContentBlock.Type == "tool_use" {
				b.content.ID = ev.ContentBlock.ID
				b.content.Name = ev.ContentBlock.Name
			}
			blocks[ev.Index] = b
			order = append(order, ev.Index)
		case "content_block_delta":
			b := blocks[ev.Index]
			if b == nil || ev.Delta == nil {
				continue
			}
			switch ev.Delta.DeltaType {
			case "text_delta":
				b.content.Text += ev.Delta.Text
			case "input_json_delta":
				b.jsonAccum.WriteString(ev.Delta.PartialJSON)
			}
		case "content_block_stop":
			b := blocks[ev.Index]
			if b != nil && b.content.Type == "tool_use" {
				b.content.Input = decodeToolInput(b.jsonAccum.String())
			}
		case "message_delta":
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				resp.StopReason = ev.Delta.StopReason
			}
			if ev.Usage != nil {
				resp.Usage.OutputTokens = ev.Usage.OutputTokens
				if ev.Usage.InputTokens != 0 {
					resp.Usage.InputTokens = ev.Usage.InputTokens
				}
			}
		case "error":
			msg := "upstream stream error"
			if ev.Error != nil && ev.Error.Message != "" {
				msg = ev.Error.Message
			}
			return nil, fmt.Errorf("%s", msg)
		}
	}

	for _, idx := range order {
		resp.Content = append(resp.Content, blocks[idx].content)
	}
	return resp, nil
}

// decodeToolInput parses an accumulated input_json_delta payload, wrapping
// unparsable JSON as a raw string rather than failing the whole response
// (mirrors the Request Converter's parseToolArguments degrade-don't-fail
// rule in spec.md §4.1).
func decodeToolInput(raw string) map[string]interface{} {
	if raw == "" {
		return map[string]interface{}{}
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return map[string]interface{}{"_raw": raw}
	}
	return parsed
}
