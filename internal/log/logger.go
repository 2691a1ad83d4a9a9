// SPDX-License-Identifier: MIT
// Package log is the leveled logger shared by every tonepipe component. The
// level is held atomically so it can be changed while the engine runs; the
// output itself is produced by charmbracelet/log.
//
// Nothing in here may be called from a completion-signal handler.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var currentLevel atomic.Uint32

// base always runs at debug level; filtering happens in shouldLog so that
// component loggers created before a SetLevel call follow the new level.
var base = newBase(os.Stderr)

func newBase(w io.Writer) *charmlog.Logger {
	l := charmlog.NewWithOptions(w, charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.StampMicro,
		Level:           charmlog.DebugLevel,
	})
	return l
}

func init() {
	SetLevel(LevelInfo)
}

// SetOutput redirects all log output. Intended for tests and for the TUI,
// which owns the terminal while it runs.
func SetOutput(w io.Writer) {
	base.SetOutput(w)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

func shouldLog(level LogLevel) bool {
	return level >= GetLevel()
}

// Logger is a component-scoped logger. Messages carry the component name
// as prefix and obey the global level.
type Logger struct {
	l *charmlog.Logger
}

// Component returns a logger whose messages are prefixed with name.
func Component(name string) *Logger {
	return &Logger{l: base.WithPrefix(name)}
}

// With returns a copy of the logger carrying the given key/value pairs.
func (lg *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{l: lg.l.With(keyvals...)}
}

func (lg *Logger) Debugf(format string, v ...interface{}) {
	if shouldLog(LevelDebug) {
		lg.l.Debug(fmt.Sprintf(format, v...))
	}
}

func (lg *Logger) Infof(format string, v ...interface{}) {
	if shouldLog(LevelInfo) {
		lg.l.Info(fmt.Sprintf(format, v...))
	}
}

func (lg *Logger) Warnf(format string, v ...interface{}) {
	if shouldLog(LevelWarn) {
		lg.l.Warn(fmt.Sprintf(format, v...))
	}
}

func (lg *Logger) Errorf(format string, v ...interface{}) {
	if shouldLog(LevelError) {
		lg.l.Error(fmt.Sprintf(format, v...))
	}
}

// --- Package-level functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...interface{}) {
	if shouldLog(LevelDebug) {
		base.Debug(fmt.Sprintf(format, v...))
	}
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...interface{}) {
	if shouldLog(LevelInfo) {
		base.Info(fmt.Sprintf(format, v...))
	}
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...interface{}) {
	if shouldLog(LevelWarn) {
		base.Warn(fmt.Sprintf(format, v...))
	}
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...interface{}) {
	if shouldLog(LevelError) {
		base.Error(fmt.Sprintf(format, v...))
	}
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...interface{}) {
	base.Fatal(fmt.Sprintf(format, v...))
}

// Fatal logs a fatal message and exits the application.
func Fatal(v ...interface{}) {
	base.Fatal(fmt.Sprint(v...))
}
