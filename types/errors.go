package types

// ErrorEnvelope is the OpenAI-shaped error body returned for every failure
// this proxy produces, regardless of which internal component raised it.
// Grounded in the teacher's scattered http.Error(...) call sites, generalized
// into one reusable, marshalable type instead of ad hoc strings.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the message, OpenAI-style error type string, and an
// optional machine-readable code (e.g. "quota_exceeded").
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

// NewErrorEnvelope builds an ErrorEnvelope from its three fields.
func NewErrorEnvelope(message, errType, code string) ErrorEnvelope {
	return ErrorEnvelope{Error: ErrorDetail{Message: message, Type: errType, Code: code}}
}
