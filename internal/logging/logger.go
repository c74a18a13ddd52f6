// Package logging provides the level-gated logger used across flashgo.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger wraps stdlib log with level support and structured key=value args.
type Logger struct {
	logger *log.Logger
	level  LogLevel
	mu     sync.Mutex
	fields []any
}

var (
	defaultLogger *Logger
	defMu         sync.RWMutex
)

// LogLevel represents the available log levels.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps FLASHGO_LOG_LEVEL string values to a LogLevel, defaulting
// to LevelInfo for anything unrecognized.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config holds logging configuration.
type Config struct {
	Level  LogLevel
	Output io.Writer
}

// DefaultConfig returns a sensible default configuration, honoring
// FLASHGO_LOG_LEVEL if set.
func DefaultConfig() *Config {
	level := LevelInfo
	if v := os.Getenv("FLASHGO_LOG_LEVEL"); v != "" {
		level = ParseLevel(v)
	}
	return &Config{
		Level:  level,
		Output: os.Stderr,
	}
}

// NewLogger creates a new logger.
func NewLogger(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	output := config.Output
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		logger: log.New(output, "", log.LstdFlags),
		level:  config.Level,
	}
}

// Default returns the default logger, creating it if necessary.
func Default() *Logger {
	defMu.RLock()
	if defaultLogger != nil {
		defer defMu.RUnlock()
		return defaultLogger
	}
	defMu.RUnlock()

	defMu.Lock()
	defer defMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil)
	}
	return defaultLogger
}

// SetDefault sets the default logger.
func SetDefault(logger *Logger) {
	defMu.Lock()
	defer defMu.Unlock()
	defaultLogger = logger
}

// WithNF returns a child logger that prefixes every message with nf_id=N.
func (l *Logger) WithNF(nfID int32) *Logger {
	return l.withFields("nf_id", nfID)
}

// WithQueue returns a child logger that additionally prefixes queue=N.
func (l *Logger) WithQueue(queue int) *Logger {
	return l.withFields("queue", queue)
}

func (l *Logger) withFields(kv ...any) *Logger {
	fields := make([]any, 0, len(l.fields)+len(kv))
	fields = append(fields, l.fields...)
	fields = append(fields, kv...)
	return &Logger{logger: l.logger, level: l.level, fields: fields}
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var result string
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			if result != "" {
				result += " "
			}
			result += fmt.Sprintf("%v=%v", args[i], args[i+1])
		}
	}
	if result != "" {
		return " " + result
	}
	return ""
}

func (l *Logger) log(level LogLevel, prefix, msg string, args ...any) {
	if level < l.level {
		return
	}
	all := make([]any, 0, len(l.fields)+len(args))
	all = append(all, l.fields...)
	all = append(all, args...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Printf("%s %s%s", prefix, msg, formatArgs(all))
}

func (l *Logger) Debug(msg string, args ...any) { l.log(LevelDebug, "[DEBUG]", msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(LevelInfo, "[INFO]", msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(LevelWarn, "[WARN]", msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(LevelError, "[ERROR]", msg, args...) }

func (l *Logger) Debugf(format string, args ...any) { l.log(LevelDebug, "[DEBUG]", fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...any)  { l.log(LevelInfo, "[INFO]", fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.log(LevelWarn, "[WARN]", fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.log(LevelError, "[ERROR]", fmt.Sprintf(format, args...)) }

// Printf satisfies callers that want a plain printf-style sink at info level.
func (l *Logger) Printf(format string, args ...any) { l.Infof(format, args...) }

// Global convenience functions operating on the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }
func Info(msg string, args ...any)  { Default().Info(msg, args...) }
func Warn(msg string, args ...any)  { Default().Warn(msg, args...) }
func Error(msg string, args ...any) { Default().Error(msg, args...) }
