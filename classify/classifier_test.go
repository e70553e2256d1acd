package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		userAgent  string
		accept     string
		wantClass  Class
		wantAccept bool
	}{
		{"jetbrains IDE", "IntelliJ IDEA/2024.1", "", ClassIDE, true},
		{"curl CLI", "curl/8.4.0", "*/*", ClassCLI, true},
		{"postman", "PostmanRuntime/7.36.0", "application/json", ClassAPITesting, false},
		{"vscode editor", "vscode/1.90.0", "text/event-stream", ClassEditor, true},
		{"chrome browser", "Mozilla/5.0 Chrome/125.0", "text/html", ClassBrowser, false},
		{"unknown client SSE", "some-custom-agent/1.0", "text/event-stream", ClassUnknown, true},
		{"unknown client no SSE", "some-custom-agent/1.0", "application/json", ClassUnknown, false},
		{"empty accept defaults to accepting SSE", "some-custom-agent/1.0", "", ClassUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.userAgent, tt.accept)
			assert.Equal(t, tt.wantClass, got.Class)
			assert.Equal(t, tt.wantAccept, got.AcceptsSSE)
		})
	}
}

func TestClassify_FirstRuleWins(t *testing.T) {
	// "jetbrains" substring present alongside "vscode" - IDE rule set is
	// evaluated first, so IDE should win.
	got := Classify("jetbrains-vscode-bridge/1.0", "")
	assert.Equal(t, ClassIDE, got.Class)
}
