package upstream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"vertex-claude-proxy/types"
)

// EventDecoder reads Server-Sent Events off an upstream Vertex streaming
// response body and decodes each `data: ` line into a types.AnthropicEvent.
//
// Grounded on the teacher's proxy/stream.go ProcessStreamingResponse, which
// scans the same "data: " / blank-line SSE framing with an enlarged
// scanner buffer to tolerate long tool-call argument chunks; this type
// keeps that buffer sizing but decodes into the Anthropic event vocabulary
// instead of OpenAI chunks, since here the upstream speaks Anthropic.
type EventDecoder struct {
	scanner *bufio.Scanner
}

// NewEventDecoder wraps body for line-by-line SSE decoding.
func NewEventDecoder(body io.Reader) *EventDecoder {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &EventDecoder{scanner: scanner}
}

// Next returns the next decoded event, io.EOF when the stream ends cleanly,
// or a read error. A "data: " payload that does not decode as JSON is
// skipped rather than returned as an error. Lines that are not "data: " frames (including
// "event: " lines and blank separators) are skipped, since every Anthropic
// event's type is already carried in its data payload's "type" field.
func (d *EventDecoder) Next() (types.AnthropicEvent, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return types.AnthropicEvent{}, io.EOF
		}
		var ev types.AnthropicEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			continue
		}
		return ev, nil
	}
	if err := d.scanner.Err(); err != nil {
		return types.AnthropicEvent{}, err
	}
	return types.AnthropicEvent{}, io.EOF
}
