// Package auth loads a Google service-account JSON, exchanges it for an
// OAuth2 access token via a self-signed JWT assertion, and caches the
// token with refresh coalescing, using
// golang.org/x/oauth2/google.CredentialsFromJSON rather than hand-rolling
// RS256 JWT signing.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"vertex-claude-proxy/config"
	"vertex-claude-proxy/logger"
	"vertex-claude-proxy/perr"
)

const (
	vertexScope   = "https://www.googleapis.com/auth/cloud-platform"
	safetyMargin  = 60 * time.Second
	refreshTimeout = 10 * time.Second
)

// serviceAccountFields is the subset of a service-account JSON this
// provider validates before attempting a token exchange.
type serviceAccountFields struct {
	Type        string `json:"type"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// Provider is a process-scoped, shared OAuth2 token cache: one Provider
// per process, refreshed on demand, with concurrent callers during a
// refresh coalescing onto a single in-flight call.
type Provider struct {
	clientEmail string
	tokenSource oauth2.TokenSource

	mu           sync.Mutex
	cachedToken  *oauth2.Token
	refreshing   chan struct{} // non-nil while a refresh is in flight
}

// NewProvider builds a Provider from the configured credential source:
// a file path, an inline JSON string, or a deprecated base64 environment
// variable payload.
func NewProvider(ctx context.Context, cfg *config.Config) (*Provider, error) {
	raw, err := loadServiceAccountJSON(cfg)
	if err != nil {
		return nil, err
	}

	var fields serviceAccountFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, perr.Wrap(perr.Authentication, "service account JSON is malformed", err)
	}
	if missing := validateFields(fields); missing != "" {
		return nil, perr.New(perr.Authentication, "service account JSON missing required field: "+missing)
	}

	creds, err := google.CredentialsFromJSON(ctx, raw, vertexScope)
	if err != nil {
		return nil, perr.Wrap(perr.Authentication, "failed to build credentials from service account JSON", err)
	}

	return &Provider{
		clientEmail: fields.ClientEmail,
		tokenSource: creds.TokenSource,
	}, nil
}

func loadServiceAccountJSON(cfg *config.Config) ([]byte, error) {
	switch cfg.CredentialSource {
	case config.CredentialSourceFile:
		data, err := os.ReadFile(cfg.ServiceAccountPath)
		if err != nil {
			return nil, perr.Wrap(perr.Authentication, "failed to read service account file", err)
		}
		return data, nil
	case config.CredentialSourceInline:
		if cfg.ServiceAccountJSON == "" {
			return nil, perr.New(perr.Authentication, "service_account_json is empty")
		}
		return []byte(cfg.ServiceAccountJSON), nil
	case config.CredentialSourceBase64:
		decoded, err := base64.StdEncoding.DecodeString(cfg.ServiceAccountBase64)
		if err != nil {
			return nil, perr.Wrap(perr.Authentication, "failed to base64-decode service account (deprecated source)", err)
		}
		return decoded, nil
	default:
		return nil, perr.New(perr.Authentication, fmt.Sprintf("unknown credential source %q", cfg.CredentialSource))
	}
}

func validateFields(f serviceAccountFields) string {
	switch {
	case f.Type != "service_account":
		return "type"
	case f.ClientEmail == "":
		return "client_email"
	case f.PrivateKey == "":
		return "private_key"
	case f.TokenURI == "":
		return "token_uri"
	}
	return ""
}

// ClientEmail returns the service account's email, safe to log.
func (p *Provider) ClientEmail() string { return p.clientEmail }

// Source adapts a Provider to upstream.CredentialSource's single-argument
// AccessToken signature, logging refreshes through a fixed logger rather
// than one threaded through per call.
type Source struct {
	Provider *Provider
	Log      logger.Logger
}

// AccessToken satisfies upstream.CredentialSource.
func (s Source) AccessToken(ctx context.Context) (string, error) {
	return s.Provider.AccessToken(ctx, s.Log)
}

// AccessToken returns a valid bearer token, refreshing it if the cached
// token is absent or within safetyMargin of expiry. Concurrent callers
// during a refresh coalesce onto the same in-flight exchange rather than
// each starting their own.
func (p *Provider) AccessToken(ctx context.Context, log logger.Logger) (string, error) {
	p.mu.Lock()
	if p.cachedToken != nil && time.Until(p.cachedToken.Expiry) > safetyMargin {
		token := p.cachedToken.AccessToken
		p.mu.Unlock()
		return token, nil
	}

	if p.refreshing != nil {
		waitCh := p.refreshing
		p.mu.Unlock()
		<-waitCh
		return p.AccessToken(ctx, log)
	}

	done := make(chan struct{})
	p.refreshing = done
	p.mu.Unlock()

	token, err := p.refresh(ctx, log)

	p.mu.Lock()
	p.refreshing = nil
	close(done)
	p.mu.Unlock()

	if err != nil {
		return "", err
	}
	return token, nil
}

// refresh performs the actual token-endpoint exchange, retrying up to two
// times before surfacing the error to the caller.
func (p *Provider) refresh(ctx context.Context, log logger.Logger) (string, error) {
	refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= 2; attempt++ {
		token, err := p.tokenSource.Token()
		if err == nil {
			p.mu.Lock()
			p.cachedToken = token
			p.mu.Unlock()
			if log != nil {
				logger.LogCredentialRefresh(log, p.clientEmail)
			}
			return token.AccessToken, nil
		}
		lastErr = err
		select {
		case <-refreshCtx.Done():
			return "", perr.Wrap(perr.Authentication, "token refresh timed out", refreshCtx.Err())
		default:
		}
	}
	return "", perr.Wrap(perr.Authentication, "token refresh failed after retries", lastErr)
}
