// Package upstream implements the Upstream Client (spec §4.6): it builds
// the Vertex AI request, attaches a bearer token, retries on transport
// errors and 5xx/429 with full-jitter exponential backoff, and classifies
// failures into the perr taxonomy.
//
// Grounded on the teacher's proxy/handler.go provider-selection/retry shell
// and circuitbreaker/breaker.go + circuitbreaker/health.go (failure
// counting, backoff, circuit open/close), generalized from "rotate across N
// configured endpoints" down to "retry against the single configured
// Vertex endpoint," since spec.md has exactly one upstream. URL selection
// is grounded on cecil-the-coder-ai-provider-kit's vertex/middleware.go
// :rawPredict / :streamRawPredict pattern.
package upstream

import (
	"context"
	"fmt"
)

// Backend is the capability set spec.md §9 describes abstractly: build the
// request URL, produce the display model name, and obtain request-time
// authorization. A single Backend is selected at startup and never switched
// per request (multi-backend routing is an explicit non-goal).
type Backend interface {
	// RawPredictURL returns the resource URL for a non-streaming call.
	RawPredictURL() string
	// StreamRawPredictURL returns the resource URL for a streaming call.
	StreamRawPredictURL() string
	// DisplayModel is the configured OpenAI-facing model name. Chat
	// completion responses echo the request's own model field, not this.
	DisplayModel() string
	// Authorize attaches whatever the backend needs for authentication
	// (e.g. a bearer token) to outgoing request headers.
	Authorize(ctx context.Context, headerSetter func(key, value string)) error
}

// VertexBackend targets a Google Vertex AI endpoint serving Anthropic
// Claude models. Grounded on original_source/src/provider.rs, which builds
// the Vertex resource path from project_id/region/model_id and always sets
// anthropic_version.
type VertexBackend struct {
	// baseURL is the fully-qualified Vertex resource prefix up to and
	// including the model id, e.g.
	// https://<region>-aiplatform.googleapis.com/v1/projects/<proj>/locations/<region>/publishers/anthropic/models/<model>
	baseURL       string
	upstreamModel string
	echoModel     string
	credentials   CredentialSource
}

// CredentialSource is the minimal capability VertexBackend needs from
// auth.Provider, kept as an interface here so upstream never imports auth
// directly (avoiding a dependency cycle with the wiring package).
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// NewVertexBackend builds a VertexBackend. baseURL must already be resolved
// to the model-scoped resource prefix (the configuration loader's job, per
// spec.md §6).
func NewVertexBackend(baseURL, upstreamModel, echoModel string, credentials CredentialSource) *VertexBackend {
	if echoModel == "" {
		echoModel = upstreamModel
	}
	return &VertexBackend{baseURL: baseURL, upstreamModel: upstreamModel, echoModel: echoModel, credentials: credentials}
}

func (b *VertexBackend) RawPredictURL() string {
	return fmt.Sprintf("%s:rawPredict", b.baseURL)
}

func (b *VertexBackend) StreamRawPredictURL() string {
	return fmt.Sprintf("%s:streamRawPredict", b.baseURL)
}

func (b *VertexBackend) DisplayModel() string { return b.echoModel }

func (b *VertexBackend) Authorize(ctx context.Context, headerSetter func(key, value string)) error {
	token, err := b.credentials.AccessToken(ctx)
	if err != nil {
		return err
	}
	headerSetter("Authorization", "Bearer "+token)
	return nil
}
