package logger

import (
	"context"
	"strings"
)

// ConfigAdapter adapts a minimal level/masking policy to LoggerConfig. It
// depends only on two primitive values (not config.Config directly) so that
// this package never imports config, avoiding the import cycle config would
// otherwise create if it ever needed to log during validation.
type ConfigAdapter struct {
	minLevel     Level
	maskSecrets  bool
}

// NewConfigAdapter builds a LoggerConfig from a textual level name
// ("debug"|"info"|"warn"|"error") and a masking flag.
func NewConfigAdapter(levelName string, maskSecrets bool) LoggerConfig {
	return &ConfigAdapter{minLevel: parseLevel(levelName), maskSecrets: maskSecrets}
}

func parseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

func (c *ConfigAdapter) GetMinLogLevel() Level   { return c.minLevel }
func (c *ConfigAdapter) ShouldMaskSecrets() bool { return c.maskSecrets }

// NewFromLevel creates a logger scoped to ctx using the given level name,
// always masking secrets (the proxy never has a legitimate reason to log a
// bearer token or private key).
func NewFromLevel(ctx context.Context, levelName string) Logger {
	return New(ctx, NewConfigAdapter(levelName, true))
}
