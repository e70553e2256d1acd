// Package logger provides structured, context-aware logging for the proxy,
// backed by logrus the way the teacher's ContextLogger wraps its own
// leveled/filtered log calls. The request path (httpapi, upstream, auth)
// logs through a Logger value so request ID, component, and model context
// ride along with every line; the circuitbreaker package and the httpapi
// Recovery middleware write through the standard log package instead.
package logger

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"vertex-claude-proxy/internal"
)

// Level mirrors logrus.Level but keeps the teacher's small enum so callers
// outside this package don't need to import logrus directly.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of a log level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns the emoji prefix for a log level, matching the teacher's
// visual log style.
func (l Level) Emoji() string {
	switch l {
	case DEBUG:
		return "🔍"
	case INFO:
		return "ℹ️"
	case WARN:
		return "⚠️"
	case ERROR:
		return "❌"
	default:
		return "📝"
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case INFO:
		return logrus.InfoLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger is the structured logging interface every component depends on.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithModel(model string) Logger
	WithComponent(component string) Logger
}

// LoggerConfig controls level filtering and secret masking, implemented by
// ConfigAdapter (built from a level name and a masking flag).
type LoggerConfig interface {
	GetMinLogLevel() Level
	ShouldMaskSecrets() bool
}

// ContextLogger implements Logger on top of a *logrus.Entry, carrying a
// context (for request ID lookup), a minimum-level/masking policy, and an
// accumulated field set.
type ContextLogger struct {
	ctx    context.Context
	config LoggerConfig
	entry  *logrus.Entry
	model  string
}

type contextKey string

const loggerContextKey contextKey = "logger"

// base is the process-wide logrus logger every ContextLogger writes
// through; it carries the formatter/output configuration set by Configure.
var base = logrus.New()

// Configure sets the base logrus logger's level and formatter. Called once
// at startup from main.go.
func Configure(level Level) {
	base.SetLevel(level.logrusLevel())
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// New creates a ContextLogger scoped to ctx, filtered by config.
func New(ctx context.Context, config LoggerConfig) Logger {
	entry := base.WithField("request_id", internal.GetRequestID(ctx))
	return &ContextLogger{ctx: ctx, config: config, entry: entry}
}

// FromContext returns the logger stashed in ctx by WithContext, or a fresh
// one scoped to ctx if none was stored.
func FromContext(ctx context.Context, config LoggerConfig) Logger {
	if l, ok := ctx.Value(loggerContextKey).(Logger); ok {
		return l
	}
	return New(ctx, config)
}

// WithContext stores l in ctx for later retrieval via FromContext.
func (l *ContextLogger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, loggerContextKey, l)
}

func (l *ContextLogger) WithField(key string, value interface{}) Logger {
	return &ContextLogger{ctx: l.ctx, config: l.config, model: l.model, entry: l.entry.WithField(key, value)}
}

func (l *ContextLogger) WithModel(model string) Logger {
	return &ContextLogger{ctx: l.ctx, config: l.config, model: model, entry: l.entry.WithField("model", model)}
}

func (l *ContextLogger) WithComponent(component string) Logger {
	return &ContextLogger{ctx: l.ctx, config: l.config, model: l.model, entry: l.entry.WithField("component", component)}
}

func (l *ContextLogger) shouldLog(level Level) bool {
	return level >= l.config.GetMinLogLevel()
}

// mask redacts bearer tokens and private-key material from a format string
// before it reaches the log sink. The logging methods pass it the format
// string only; values supplied as format arguments are not inspected.
func (l *ContextLogger) mask(message string) string {
	if !l.config.ShouldMaskSecrets() {
		return message
	}
	if idx := strings.Index(message, "Bearer "); idx != -1 {
		message = message[:idx+len("Bearer ")] + "***"
	}
	if strings.Contains(message, "BEGIN PRIVATE KEY") {
		message = "[redacted: private key material]"
	}
	return message
}

func (l *ContextLogger) Debug(format string, args ...interface{}) {
	if l.shouldLog(DEBUG) {
		l.entry.Debugf(l.mask(format), args...)
	}
}

func (l *ContextLogger) Info(format string, args ...interface{}) {
	if l.shouldLog(INFO) {
		l.entry.Infof(l.mask(format), args...)
	}
}

func (l *ContextLogger) Warn(format string, args ...interface{}) {
	if l.shouldLog(WARN) {
		l.entry.Warnf(l.mask(format), args...)
	}
}

func (l *ContextLogger) Error(format string, args ...interface{}) {
	if l.shouldLog(ERROR) {
		l.entry.Errorf(l.mask(format), args...)
	}
}

// noOpLogger discards everything; used when a caller wants a Logger value
// without wiring a config (e.g. in tests).
type noOpLogger struct{}

func NoOp() Logger                                            { return noOpLogger{} }
func (noOpLogger) Debug(string, ...interface{})                {}
func (noOpLogger) Info(string, ...interface{})                 {}
func (noOpLogger) Warn(string, ...interface{})                 {}
func (noOpLogger) Error(string, ...interface{})                {}
func (n noOpLogger) WithField(string, interface{}) Logger      { return n }
func (n noOpLogger) WithModel(string) Logger                   { return n }
func (n noOpLogger) WithComponent(string) Logger                { return n }
