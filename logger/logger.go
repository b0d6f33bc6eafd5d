package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ateliersoft/anisync/core"
)

// redactedValue replaces credential field values in log output.
const redactedValue = "[REDACTED]"

// sensitiveKeys lists field-key substrings whose values are never logged.
var sensitiveKeys = []string{
	"token",
	"authorization",
	"api_key",
	"apikey",
	"password",
	"secret",
}

// ZerologLogger adapts zerolog to core.Logger. It is safe for concurrent
// use; zerolog events are immutable once created.
type ZerologLogger struct {
	log zerolog.Logger
}

// Compile-time interface checks.
var (
	_ core.Logger               = (*ZerologLogger)(nil)
	_ core.ComponentAwareLogger = (*ZerologLogger)(nil)
)

// New builds a logger from the given configuration. Unknown levels fall
// back to info, unknown outputs to stdout. Format "text" wraps the writer
// in zerolog's console writer; anything else emits JSON.
func New(cfg core.LoggingConfig) *ZerologLogger {
	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			out = os.Stdout
		} else {
			out = f
		}
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = timeFormat

	if strings.EqualFold(cfg.Format, "text") || strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: timeFormat}
	}

	log := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()

	return &ZerologLogger{log: log}
}

// NewWithWriter builds a JSON logger over an arbitrary writer. Tests use
// it to capture output.
func NewWithWriter(w io.Writer, level string) *ZerologLogger {
	log := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()
	return &ZerologLogger{log: log}
}

// Info logs at info level.
func (l *ZerologLogger) Info(msg string, fields map[string]interface{}) {
	l.emit(l.log.Info(), msg, fields)
}

// Error logs at error level.
func (l *ZerologLogger) Error(msg string, fields map[string]interface{}) {
	l.emit(l.log.Error(), msg, fields)
}

// Warn logs at warn level.
func (l *ZerologLogger) Warn(msg string, fields map[string]interface{}) {
	l.emit(l.log.Warn(), msg, fields)
}

// Debug logs at debug level.
func (l *ZerologLogger) Debug(msg string, fields map[string]interface{}) {
	l.emit(l.log.Debug(), msg, fields)
}

// WithComponent returns a child logger whose events all carry the
// component name.
func (l *ZerologLogger) WithComponent(name string) core.Logger {
	return &ZerologLogger{
		log: l.log.With().Str("component", name).Logger(),
	}
}

func (l *ZerologLogger) emit(event *zerolog.Event, msg string, fields map[string]interface{}) {
	for k, v := range fields {
		if isSensitiveKey(k) {
			event = event.Str(k, redactedValue)
			continue
		}
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
