package convert

import "vertex-claude-proxy/types"

// bufferThreshold is the default character length at which BufferedSink
// flushes accumulated text, per spec.md §4.3.
const bufferThreshold = 64

// BufferedSink implements the buffered-SSE transmission mode: text deltas
// are coalesced until a length threshold, a sentence terminator, or a
// block/terminal boundary forces a flush. Tool-call deltas and the role
// chunk always pass straight through.
//
// Grounded on the same accumulate-then-flush idiom as Transformer itself;
// kept as a separate stage so Transformer's HandleEvent output can feed
// either Standard or Buffered framing without knowing which one is live.
type BufferedSink struct {
	pending types.OpenAIStreamChunk
	text    string
	hasText bool
}

// NewBufferedSink returns an empty sink ready to process a call's chunks.
func NewBufferedSink() *BufferedSink {
	return &BufferedSink{}
}

// Process consumes the chunks produced by one Transformer.HandleEvent call
// and returns the chunks that should actually be written to the client.
// boundary is true when the caller's HandleEvent call returned
// EventBlockBoundary or EventTerminal, forcing any pending text out.
func (s *BufferedSink) Process(chunks []types.OpenAIStreamChunk, boundary bool) []types.OpenAIStreamChunk {
	var out []types.OpenAIStreamChunk
	for _, c := range chunks {
		if isPureTextDelta(c) {
			s.accumulate(c)
			if s.shouldFlush() {
				out = append(out, s.flush())
			}
			continue
		}
		if s.hasText {
			out = append(out, s.flush())
		}
		out = append(out, c)
	}
	if boundary && s.hasText {
		out = append(out, s.flush())
	}
	return out
}

// isPureTextDelta reports whether a chunk carries only a content delta (no
// role, no tool calls, no finish reason) and is therefore a bufferable
// text fragment.
func isPureTextDelta(c types.OpenAIStreamChunk) bool {
	if len(c.Choices) != 1 {
		return false
	}
	ch := c.Choices[0]
	d := ch.Delta
	return ch.FinishReason == nil && d.Role == "" && len(d.ToolCalls) == 0 && d.Content != ""
}

func (s *BufferedSink) accumulate(c types.OpenAIStreamChunk) {
	s.pending = c
	s.text += c.Choices[0].Delta.Content
	s.hasText = true
}

func (s *BufferedSink) shouldFlush() bool {
	if len([]rune(s.text)) >= bufferThreshold {
		return true
	}
	switch s.text[len(s.text)-1] {
	case '.', '!', '?', '\n':
		return true
	}
	return false
}

func (s *BufferedSink) flush() types.OpenAIStreamChunk {
	out := s.pending
	out.Choices = []types.OpenAIStreamChoice{{
		Index: 0,
		Delta: types.OpenAIStreamDelta{Content: s.text},
	}}
	s.text = ""
	s.hasText = false
	return out
}

// ToClassic repackages a standard-SSE chunk into the flatter OpenAI-legacy
// completion envelope used by older clients. Each choice carries only the
// delta's text content (as Text) and its finish reason; role and tool-call
// deltas are not carried into the classic envelope.
func ToClassic(c types.OpenAIStreamChunk) types.OpenAIClassicChunk {
	out := types.OpenAIClassicChunk{
		ID:      c.ID,
		Object:  "text_completion",
		Created: c.Created,
		Model:   c.Model,
	}
	for _, ch := range c.Choices {
		text := ch.Delta.Content
		out.Choices = append(out.Choices, types.OpenAIClassicChoice{
			Index:        ch.Index,
			Text:         text,
			FinishReason: ch.FinishReason,
		})
	}
	return out
}
