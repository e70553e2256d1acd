package types

import "encoding/json"

// AnthropicRequest is the outbound request body sent to the Vertex AI
// endpoint, built by the request converter from an inbound OpenAIRequest.
//
// Model is omitted from the JSON body: Vertex AI encodes the model in the
// resource URL (:rawPredict / :streamRawPredict), not in the payload, so its
// json:"-" tag keeps it out of the marshaled body. AnthropicVersion is always set
// to the Vertex-specific constant "vertex-2023-10-16", never the plain
// Anthropic API version string.
type AnthropicRequest struct {
	Model            string          `json:"-"`
	AnthropicVersion string          `json:"anthropic_version"`
	Messages         []Message       `json:"messages"`
	System           []SystemContent `json:"system,omitempty"`
	Tools            []Tool          `json:"tools,omitempty"`
	ToolChoice       json.RawMessage `json:"tool_choice,omitempty"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	StopSequences    []string        `json:"stop_sequences,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
}

// AnthropicResponse is the non-streaming reply from the Vertex endpoint,
// translated back into an OpenAIResponse by the response converter. It is
// also what convert.Collect assembles when replaying a streamed event
// sequence into one object.
type AnthropicResponse struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Role         string    `json:"role"`
	Model        string    `json:"model"`
	Content      []Content `json:"content"`
	StopReason   string    `json:"stop_reason"`
	StopSequence *string   `json:"stop_sequence"`
	Usage        Usage     `json:"usage"`
}

// Message is one turn of conversation history sent upstream. Content is
// typed interface{} because Anthropic's wire format allows either a plain
// string or a []Content slice; the request converter always produces a
// []Content slice, even for simple text turns.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// SystemContent is one block of the top-level system prompt. OpenAI has a
// single "system" role message; the request converter newline-joins every
// system/developer message, wherever it appears, into one SystemContent entry here,
// since Anthropic keeps system instructions outside the Messages array
// entirely.
type SystemContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Content is a single block within a message's content array: text, an
// image, a tool invocation, or a tool result. Only the fields relevant to
// Type are populated; the others are left zero and omitted from JSON.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`

	// Image blocks (Type == "image").
	Source *ImageSource `json:"source,omitempty"`

	// Tool use blocks (Type == "tool_use").
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`

	// Tool result blocks (Type == "tool_result"). Content is either a plain
	// string or a []Content slice of text/image blocks, mirroring Message's
	// own content flexibility.
	ToolUseID string      `json:"tool_use_id,omitempty"`
	ToolInput interface{} `json:"content,omitempty"`
	IsError   bool        `json:"is_error,omitempty"`
}

// ImageSource is either an inline base64-encoded image (Type=="base64",
// MediaType+Data populated) or a remote image (Type=="url", URL
// populated). Built from an OpenAI image_url part: a data: URI decodes to
// the base64 form, a remote URL passes through as the url form.
type ImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

// Tool is a single tool/function definition forwarded to the model,
// translated one-for-one from an OpenAITool.
type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema ToolSchema `json:"input_schema"`
}

// ToolSchema is the JSON Schema object describing a tool's parameters. It is
// passed through from the client's function.parameters without validation or
// repair: the proxy trusts the caller's schema rather than second-guessing
// it against a hardcoded catalog.
type ToolSchema struct {
	Type       string                  `json:"type"`
	Properties map[string]ToolProperty `json:"properties"`
	Required   []string                `json:"required,omitempty"`
}

// ToolProperty is one parameter definition within a ToolSchema.
type ToolProperty struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Items       *ToolPropertyItems `json:"items,omitempty"`
}

// ToolPropertyItems is the element schema for an array-typed ToolProperty.
type ToolPropertyItems struct {
	Type string `json:"type"`
}

// Usage is the input/output token count returned with a response, mapped
// straight across into OpenAIUsage's prompt/completion fields.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicEvent is one parsed `data: ` payload of the upstream SSE stream.
// Type selects which of the other fields are populated; unused fields are
// left zero. This single struct covers the entire typed event vocabulary
// (message_start, content_block_start, content_block_delta,
// content_block_stop, message_delta, message_stop, ping, error) so the
// stream transformer can decode with one json.Unmarshal call per event and
// switch on Type.
type AnthropicEvent struct {
	Type string `json:"type"`

	// message_start
	Message *AnthropicResponse `json:"message,omitempty"`

	// content_block_start / content_block_stop
	Index        int              `json:"index"`
	ContentBlock *Content         `json:"content_block,omitempty"`

	// content_block_delta
	Delta *AnthropicDelta `json:"delta,omitempty"`

	// message_delta
	Usage *Usage `json:"usage,omitempty"`

	// error
	Error *AnthropicEventError `json:"error,omitempty"`
}

// AnthropicDelta is the payload of a content_block_delta or message_delta
// event. Exactly one of Text/PartialJSON is set for a content_block_delta
// (selected by DeltaType "text_delta" vs "input_json_delta"); StopReason and
// StopSequence are set on message_delta events instead.
type AnthropicDelta struct {
	DeltaType    string  `json:"type,omitempty"`
	Text         string  `json:"text,omitempty"`
	PartialJSON  string  `json:"partial_json,omitempty"`
	StopReason   string  `json:"stop_reason,omitempty"`
	StopSequence *string `json:"stop_sequence,omitempty"`
}

// AnthropicEventError is the body of an in-stream "error" event, distinct
// from an HTTP-level error response: the connection stayed open long enough
// to start streaming before the upstream failed.
type AnthropicEventError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// AnthropicModelsResponse is not part of Anthropic's API; Vertex has no
// model-listing endpoint for a pinned deployment, so GET /v1/models is
// synthesized entirely from configuration (see httpapi's Handler.Models) and
// needs no Anthropic-side wire type.
