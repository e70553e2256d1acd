package classify

// Mode is the transmission mode the Transmission Policy selects for one
// request (spec §4.4).
type Mode string

const (
	ModeNonStreaming Mode = "non-streaming"
	ModeStandardSSE  Mode = "standard-sse"
	ModeBufferedSSE  Mode = "buffered-sse"
	ModeClassicSSE   Mode = "classic-json-sse"
)

// ConfiguredMode is the global proxy-wide setting (config.TransmissionMode
// duplicated here as a small string-backed type so this package doesn't
// need to import config, avoiding a dependency cycle risk since config
// never needs classify).
type ConfiguredMode string

const (
	ConfiguredAuto         ConfiguredMode = "auto"
	ConfiguredNonStreaming ConfiguredMode = "non-streaming"
	ConfiguredStandard     ConfiguredMode = "standard"
	ConfiguredBuffered     ConfiguredMode = "buffered"
	ConfiguredClassic      ConfiguredMode = "classic"
)

// SelectMode implements spec.md §4.4's precedence rules:
//  1. If configured is not auto, use it verbatim, except stream=false
//     always forces non-streaming.
//  2. In auto: stream=false -> non-streaming; IDE/CLI/API-Testing ->
//     non-streaming; Browser -> buffered SSE; Editor -> standard SSE;
//     Unknown without Accept: text/event-stream -> non-streaming,
//     otherwise standard SSE.
func SelectMode(configured ConfiguredMode, requestStream bool, classification Classification) Mode {
	if !requestStream {
		return ModeNonStreaming
	}

	if configured != ConfiguredAuto {
		switch configured {
		case ConfiguredNonStreaming:
			return ModeNonStreaming
		case ConfiguredStandard:
			return ModeStandardSSE
		case ConfiguredBuffered:
			return ModeBufferedSSE
		case ConfiguredClassic:
			return ModeClassicSSE
		}
	}

	switch classification.Class {
	case ClassIDE, ClassCLI, ClassAPITesting:
		return ModeNonStreaming
	case ClassBrowser:
		return ModeBufferedSSE
	case ClassEditor:
		return ModeStandardSSE
	default: // Unknown
		if !classification.AcceptsSSE {
			return ModeNonStreaming
		}
		return ModeStandardSSE
	}
}
