// Package config loads the proxy's configuration record from a YAML file
// layered with environment variable overrides, the way the teacher's
// LoadConfigWithEnv layers a .env file over defaults. The resulting Config is
// the validated record the rest of the proxy consumes; the core components
// never read the environment or a file directly.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// TransmissionMode is the configured global SSE strategy (§4.4).
type TransmissionMode string

const (
	ModeAuto          TransmissionMode = "auto"
	ModeNonStreaming  TransmissionMode = "non-streaming"
	ModeStandard      TransmissionMode = "standard"
	ModeBuffered      TransmissionMode = "buffered"
	ModeClassic       TransmissionMode = "classic"
)

// CredentialSource selects how the Google service-account JSON is obtained.
type CredentialSource string

const (
	CredentialSourceFile   CredentialSource = "file"
	CredentialSourceInline CredentialSource = "inline"
	CredentialSourceBase64 CredentialSource = "base64" // deprecated but accepted
)

// CircuitBreakerConfig controls the upstream health tracker's failure
// threshold and backoff schedule. Adapted from the teacher's multi-endpoint
// circuitbreaker.Config down to a single upstream.
type CircuitBreakerConfig struct {
	FailureThreshold   int           `yaml:"failure_threshold"`
	BackoffDuration    time.Duration `yaml:"backoff_duration"`
	MaxBackoffDuration time.Duration `yaml:"max_backoff_duration"`
	ResetTimeout       time.Duration `yaml:"reset_timeout"`
}

// DefaultCircuitBreakerConfig mirrors the teacher's DefaultCircuitBreakerConfig.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:   2,
		BackoffDuration:    30 * time.Second,
		MaxBackoffDuration: 5 * time.Minute,
		ResetTimeout:       1 * time.Minute,
	}
}

// Config is the validated record every core component consumes. Outside
// this package, only main.go (CONFIG_FILE) reads an environment variable,
// and only the credential provider reads a file (the service-account file
// this record names).
type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Upstream endpoint.
	UpstreamURL      string `yaml:"upstream_url"`       // e.g. https://<region>-aiplatform.googleapis.com/v1/projects/<proj>/locations/<region>/publishers/anthropic/models/<model>
	UpstreamModel    string `yaml:"upstream_model"`     // Vertex model id, e.g. claude-sonnet-4@20250514
	EchoModelName    string `yaml:"echo_model_name"`    // OpenAI-facing model name; defaults to UpstreamModel

	// Credential Provider.
	CredentialSource         CredentialSource `yaml:"credential_source"`
	ServiceAccountPath       string           `yaml:"service_account_path"`
	ServiceAccountJSON       string           `yaml:"service_account_json"`
	ServiceAccountBase64     string           `yaml:"service_account_base64"`

	// Transmission Policy.
	TransmissionMode TransmissionMode `yaml:"transmission_mode"`

	// Upstream Client retry policy.
	RetryEnabled     bool `yaml:"retry_enabled"`
	MaxRetryAttempts int  `yaml:"max_retry_attempts"`

	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// Default returns a Config with every field at its spec-mandated default,
// the way GetDefaultConfig seeded the teacher's testing config.
func Default() *Config {
	return &Config{
		Port:             "8080",
		LogLevel:         "info",
		TransmissionMode: ModeAuto,
		CredentialSource: CredentialSourceFile,
		RetryEnabled:     true,
		MaxRetryAttempts: 3,
		CircuitBreaker:   DefaultCircuitBreakerConfig(),
	}
}

// Load reads an optional YAML file at path (skipped silently if it doesn't
// exist) and layers environment variable overrides on top, the way the
// teacher's LoadConfigWithEnv layers .env over defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.EchoModelName == "" {
		cfg.EchoModelName = cfg.UpstreamModel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides overlays unprefixed environment variables (PORT,
// LOG_LEVEL, UPSTREAM_URL, ...) onto cfg, mirroring the teacher's KEY=VALUE .env convention but read from the
// process environment rather than a .env file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("UPSTREAM_URL"); v != "" {
		cfg.UpstreamURL = v
	}
	if v := os.Getenv("UPSTREAM_MODEL"); v != "" {
		cfg.UpstreamModel = v
	}
	if v := os.Getenv("ECHO_MODEL_NAME"); v != "" {
		cfg.EchoModelName = v
	}
	if v := os.Getenv("CREDENTIAL_SOURCE"); v != "" {
		cfg.CredentialSource = CredentialSource(v)
	}
	if v := os.Getenv("SERVICE_ACCOUNT_PATH"); v != "" {
		cfg.ServiceAccountPath = v
	}
	if v := os.Getenv("SERVICE_ACCOUNT_JSON"); v != "" {
		cfg.ServiceAccountJSON = v
	}
	if v := os.Getenv("SERVICE_ACCOUNT_BASE64"); v != "" {
		cfg.ServiceAccountBase64 = v
	}
	if v := os.Getenv("TRANSMISSION_MODE"); v != "" {
		cfg.TransmissionMode = TransmissionMode(v)
	}
	if v := os.Getenv("RETRY_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RetryEnabled = b
		}
	}
	if v := os.Getenv("MAX_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetryAttempts = n
		}
	}
}

// Validate rejects a Config missing the fields every request path needs.
func (c *Config) Validate() error {
	var missing []string
	if c.UpstreamURL == "" {
		missing = append(missing, "upstream_url")
	}
	if c.UpstreamModel == "" {
		missing = append(missing, "upstream_model")
	}
	switch c.CredentialSource {
	case CredentialSourceFile:
		if c.ServiceAccountPath == "" {
			missing = append(missing, "service_account_path")
		}
	case CredentialSourceInline:
		if c.ServiceAccountJSON == "" {
			missing = append(missing, "service_account_json")
		}
	case CredentialSourceBase64:
		if c.ServiceAccountBase64 == "" {
			missing = append(missing, "service_account_base64")
		}
	default:
		return fmt.Errorf("config: unknown credential_source %q", c.CredentialSource)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required fields: %s", strings.Join(missing, ", "))
	}
	switch c.TransmissionMode {
	case ModeAuto, ModeNonStreaming, ModeStandard, ModeBuffered, ModeClassic:
	default:
		return fmt.Errorf("config: unknown transmission_mode %q", c.TransmissionMode)
	}
	return nil
}

// readDotEnv is retained from the teacher's .env convention for local
// development: if a .env file is present in the working directory, its
// KEY=VALUE pairs are exported into the process environment before Load
// reads them, so `PORT=9000` in .env behaves the same as `PORT=9000 ./server`.
func readDotEnv(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if commentIndex := strings.Index(value, "#"); commentIndex != -1 {
			value = strings.TrimSpace(value[:commentIndex])
		}
		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// LoadWithDotEnv is main.go's entrypoint for configuration: it exports an
// optional .env file into the process environment (keys already set there
// win), then loads an optional YAML file at yamlPath and applies the
// environment overrides on top. Precedence, lowest first: YAML, .env,
// process environment.
func LoadWithDotEnv(yamlPath string) (*Config, error) {
	if err := readDotEnv(".env"); err != nil {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	return Load(yamlPath)
}
