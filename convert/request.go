// Package convert implements the bidirectional translation between the
// OpenAI chat schema and the Anthropic messages schema: request
// conversion, response conversion, and live stream transformation.
package convert

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"vertex-claude-proxy/perr"
	"vertex-claude-proxy/types"
)

const defaultMaxTokens = 4096

// RequestResult is the Request Converter's output: the Anthropic request
// body plus any non-fatal warnings recorded along the way (spec.md §4.1:
// a malformed tool_call's arguments degrade to a wrapped raw string and a
// warning is recorded, not an error).
type RequestResult struct {
	Request  *types.AnthropicRequest
	Warnings []string
}

// ConvertRequest translates an OpenAI chat completion request into an
// Anthropic messages request, per spec.md §4.1.
func ConvertRequest(req types.OpenAIRequest) (*RequestResult, error) {
	result := &RequestResult{Request: &types.AnthropicRequest{
		Model:            req.Model,
		AnthropicVersion: "vertex-2023-10-16",
	}}

	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	result.Request.MaxTokens = maxTokens
	result.Request.Temperature = req.Temperature
	result.Request.TopP = req.TopP
	if req.Stop != nil {
		result.Request.StopSequences = req.Stop.Values
	}
	result.Request.Stream = req.Stream

	var systemParts []string
	var nonSystem []types.OpenAIMessage
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system", "developer":
			text, err := extractPlainText(msg.Content)
			if err != nil {
				return nil, perr.Wrap(perr.InvalidRequest, "failed to read system message content", err)
			}
			systemParts = append(systemParts, text)
		case "user", "assistant", "tool":
			nonSystem = append(nonSystem, msg)
		case "":
			return nil, perr.New(perr.InvalidRequest, "message missing role")
		default:
			return nil, perr.New(perr.InvalidRequest, fmt.Sprintf("unknown message role %q", msg.Role))
		}
	}
	if len(systemParts) > 0 {
		result.Request.System = []types.SystemContent{{Type: "text", Text: strings.Join(systemParts, "\n")}}
	}

	messages, warnings, err := convertMessages(nonSystem)
	if err != nil {
		return nil, err
	}
	result.Request.Messages = messages
	result.Warnings = append(result.Warnings, warnings...)

	if len(req.Tools) > 0 {
		tools := make([]types.Tool, 0, len(req.Tools))
		for _, t := range req.Tools {
			tools = append(tools, types.Tool{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				InputSchema: decodeSchema(t.Function.Parameters),
			})
		}
		result.Request.Tools = tools
	}

	if choice := convertToolChoice(req.ToolChoice); choice != nil {
		result.Request.ToolChoice = choice
	}

	return result, nil
}

// convertMessages merges consecutive same-role messages (spec.md §4.1:
// "Adjacent messages of the same role are not merged ... merging only when
// required"), converts each OpenAI message's content into Anthropic
// content blocks, and packs contiguous tool messages into a single user
// message carrying tool_result blocks.
func convertMessages(messages []types.OpenAIMessage) ([]types.Message, []string, error) {
	var result []types.Message
	var warnings []string

	appendBlocks := func(role string, blocks []types.Content) {
		if len(result) > 0 && result[len(result)-1].Role == role {
			existing := result[len(result)-1].Content.([]types.Content)
			result[len(result)-1].Content = append(existing, blocks...)
			return
		}
		result = append(result, types.Message{Role: role, Content: blocks})
	}

	i := 0
	for i < len(messages) {
		msg := messages[i]

		if msg.Role == "tool" {
			var toolBlocks []types.Content
			for i < len(messages) && messages[i].Role == "tool" {
				text, err := extractPlainText(messages[i].Content)
				if err != nil {
					return nil, nil, perr.Wrap(perr.InvalidRequest, "failed to read tool message content", err)
				}
				toolBlocks = append(toolBlocks, types.Content{
					Type:      "tool_result",
					ToolUseID: messages[i].ToolCallID,
					ToolInput: text,
				})
				i++
			}
			appendBlocks("user", toolBlocks)
			continue
		}

		role := msg.Role
		var blocks []types.Content

		if role == "assistant" && len(msg.ToolCalls) > 0 {
			for _, tc := range msg.ToolCalls {
				input, warn := parseToolArguments(tc.Function.Name, tc.Function.Arguments)
				if warn != "" {
					warnings = append(warnings, warn)
				}
				blocks = append(blocks, types.Content{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Function.Name,
					Input: input,
				})
			}
		}

		contentBlocks, err := convertContent(msg.Content)
		if err != nil {
			return nil, nil, err
		}
		blocks = append(blocks, contentBlocks...)

		appendBlocks(role, blocks)
		i++
	}

	return result, warnings, nil
}

// parseToolArguments parses an OpenAI tool call's JSON-string arguments
// into a JSON value; on parse failure it wraps the raw string per
// spec.md §4.1 and returns a warning message to record.
func parseToolArguments(name, arguments string) (map[string]interface{}, string) {
	if arguments == "" {
		return map[string]interface{}{}, ""
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(arguments), &parsed); err != nil {
		return map[string]interface{}{"_raw": arguments}, fmt.Sprintf("tool %s arguments were not valid JSON, wrapped as raw string", name)
	}
	return parsed, ""
}

// extractPlainText reads an OpenAI message content field that is expected
// to be a plain string (system/tool messages never carry multimodal
// content parts).
func extractPlainText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	// Some clients send an array of text parts even for system/tool
	// messages; concatenate any text parts found.
	var parts []types.OpenAIContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}

// convertContent converts an OpenAI message's content field (string or
// content-part array) into an ordered sequence of Anthropic blocks,
// preserving order (spec.md invariant iv).
func convertContent(raw json.RawMessage) ([]types.Content, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		return []types.Content{{Type: "text", Text: s}}, nil
	}

	var parts []types.OpenAIContentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, perr.Wrap(perr.InvalidRequest, "message content is neither a string nor a content-part array", err)
	}

	blocks := make([]types.Content, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case "text":
			blocks = append(blocks, types.Content{Type: "text", Text: p.Text})
		case "image_url":
			if p.ImageURL == nil {
				return nil, perr.New(perr.InvalidRequest, "image_url content part missing image_url object")
			}
			source, err := convertImageURL(p.ImageURL.URL)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, types.Content{Type: "image", Source: source})
		default:
			return nil, perr.New(perr.InvalidRequest, fmt.Sprintf("unknown content part type %q", p.Type))
		}
	}
	return blocks, nil
}

// convertImageURL decodes a data: URI into a base64 image block, or
// carries a remote URL through as a url-sourced image block (spec.md
// §4.1: "Images referenced by URL remain URL blocks; images inline with a
// data: URI are decoded to (media_type, base64) blocks").
func convertImageURL(url string) (*types.ImageSource, error) {
	if strings.HasPrefix(url, "data:") {
		mediaType, data, err := parseDataURI(url)
		if err != nil {
			return nil, perr.Wrap(perr.InvalidRequest, "failed to parse data: URI image", err)
		}
		return &types.ImageSource{Type: "base64", MediaType: mediaType, Data: data}, nil
	}
	return &types.ImageSource{Type: "url", URL: url}, nil
}

// parseDataURI parses "data:<media-type>;base64,<data>" and returns the
// media type and the base64 payload unchanged (no re-encoding, so the
// bytes are byte-identical to what the client sent).
func parseDataURI(uri string) (mediaType, data string, err error) {
	rest := strings.TrimPrefix(uri, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return "", "", fmt.Errorf("data URI missing comma separator")
	}
	header := rest[:comma]
	payload := rest[comma+1:]
	if !strings.HasSuffix(header, ";base64") {
		return "", "", fmt.Errorf("data URI is not base64-encoded")
	}
	mediaType = strings.TrimSuffix(header, ";base64")
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return "", "", fmt.Errorf("data URI payload is not valid base64: %w", err)
	}
	return mediaType, payload, nil
}

// decodeSchema converts an OpenAI function's raw JSON Schema parameters
// into an Anthropic ToolSchema, passed through without validation or
// repair (spec.md §4.1).
func decodeSchema(raw json.RawMessage) types.ToolSchema {
	if len(raw) == 0 {
		return types.ToolSchema{Type: "object"}
	}
	var schema types.ToolSchema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return types.ToolSchema{Type: "object"}
	}
	if schema.Type == "" {
		schema.Type = "object"
	}
	return schema
}

// convertToolChoice maps OpenAI's tool_choice to Anthropic's per spec.md
// §4.1: "auto"->omit, "none"->{type:"none"},
// {type:"function",function:{name}}->{type:"tool",name}.
func convertToolChoice(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		switch asString {
		case "auto", "":
			return nil
		case "none":
			out, _ := json.Marshal(map[string]string{"type": "none"})
			return out
		case "required":
			out, _ := json.Marshal(map[string]string{"type": "any"})
			return out
		}
		return nil
	}

	var asObject struct {
		Type     string `json:"type"`
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return nil
	}
	if asObject.Type == "function" && asObject.Function.Name != "" {
		out, _ := json.Marshal(map[string]string{"type": "tool", "name": asObject.Function.Name})
		return out
	}
	return nil
}
