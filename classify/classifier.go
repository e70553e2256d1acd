// Package classify implements the Client Classifier and Transmission
// Policy (spec §4.4, §4.5). No direct teacher analogue exists (the teacher
// proxy had exactly one wire mode); this package follows the teacher's
// idiom of small pure functions and table-driven case-insensitive
// substring rules, shaped like yduwcui-ai-gateway's header-inspecting
// routing in internal/apischema/gcp/gcp.go.
package classify

import "strings"

// Class is the client category the Client Classifier assigns based on
// User-Agent and Accept headers.
type Class string

const (
	ClassIDE         Class = "IDE"
	ClassCLI         Class = "CLI"
	ClassAPITesting  Class = "API-Testing"
	ClassBrowser     Class = "Browser"
	ClassEditor      Class = "Editor"
	ClassUnknown     Class = "Unknown"
)

// rule is one case-insensitive substring match against User-Agent.
type rule struct {
	class      Class
	substrings []string
}

// rules is evaluated in order; first match wins, exactly mirroring
// spec.md §4.5's ordered rule sets.
var rules = []rule{
	{ClassIDE, []string{"rustrover", "intellij", "pycharm", "goland", "webstorm", "phpstorm", "datagrip", "clion", "rider", "jetbrains"}},
	{ClassCLI, []string{"curl", "wget", "httpie", "goose", "okhttp"}},
	{ClassAPITesting, []string{"postman", "insomnia", "thunder client", "paw"}},
	{ClassEditor, []string{"vscode", "code-oss", "cursor", "zed"}},
	{ClassBrowser, []string{"mozilla", "chrome", "safari", "firefox", "edge"}},
}

// Classification is the Client Classifier's output: a class plus whether
// the client declared it accepts SSE.
type Classification struct {
	Class      Class
	AcceptsSSE bool
}

// Classify inspects the User-Agent and Accept header values of a request
// and returns the client's class and SSE-acceptance flag.
func Classify(userAgent, accept string) Classification {
	return Classification{
		Class:      classifyUserAgent(userAgent),
		AcceptsSSE: acceptsSSE(accept),
	}
}

func classifyUserAgent(userAgent string) Class {
	lower := strings.ToLower(userAgent)
	for _, r := range rules {
		for _, substr := range r.substrings {
			if strings.Contains(lower, substr) {
				return r.class
			}
		}
	}
	return ClassUnknown
}

// acceptsSSE is true iff Accept contains text/event-stream or */*, or is
// empty (spec.md §4.5).
func acceptsSSE(accept string) bool {
	if accept == "" {
		return true
	}
	lower := strings.ToLower(accept)
	return strings.Contains(lower, "text/event-stream") || strings.Contains(lower, "*/*")
}
