package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectMode_StreamFalseAlwaysNonStreaming(t *testing.T) {
	got := SelectMode(ConfiguredStandard, false, Classification{Class: ClassEditor, AcceptsSSE: true})
	assert.Equal(t, ModeNonStreaming, got)
}

func TestSelectMode_ConfiguredOverridesClassification(t *testing.T) {
	got := SelectMode(ConfiguredClassic, true, Classification{Class: ClassBrowser, AcceptsSSE: true})
	assert.Equal(t, ModeClassicSSE, got)
}

func TestSelectMode_AutoPrecedence(t *testing.T) {
	tests := []struct {
		name  string
		class Classification
		want  Mode
	}{
		{"IDE forces non-streaming", Classification{Class: ClassIDE, AcceptsSSE: true}, ModeNonStreaming},
		{"CLI forces non-streaming", Classification{Class: ClassCLI, AcceptsSSE: true}, ModeNonStreaming},
		{"API testing forces non-streaming", Classification{Class: ClassAPITesting, AcceptsSSE: true}, ModeNonStreaming},
		{"browser gets buffered SSE", Classification{Class: ClassBrowser, AcceptsSSE: true}, ModeBufferedSSE},
		{"editor gets standard SSE", Classification{Class: ClassEditor, AcceptsSSE: true}, ModeStandardSSE},
		{"unknown without SSE accept is non-streaming", Classification{Class: ClassUnknown, AcceptsSSE: false}, ModeNonStreaming},
		{"unknown with SSE accept gets standard SSE", Classification{Class: ClassUnknown, AcceptsSSE: true}, ModeStandardSSE},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SelectMode(ConfiguredAuto, true, tt.class)
			assert.Equal(t, tt.want, got)
		})
	}
}
