// Package badgerlog adapts the standard logger into a leveled badger.Logger.
package badgerlog

import (
	"fmt"
	"log"
	"strings"
)

// Level is the minimum severity of the messages that are logged.
type Level uint8

const (
	NoLogging Level = iota
	ErrorLevel
	WarningLevel
	InfoLevel
	DebugLevel
)

var levelNames = map[string]Level{
	"none":    NoLogging,
	"error":   ErrorLevel,
	"warning": WarningLevel,
	"warn":    WarningLevel,
	"info":    InfoLevel,
	"debug":   DebugLevel,
}

// ParseLevel parses a level name such as "warning". An empty string is
// WarningLevel.
func ParseLevel(name string) (Level, error) {
	if name == "" {
		return WarningLevel, nil
	}

	level, ok := levelNames[strings.ToLower(name)]
	if !ok {
		return NoLogging, fmt.Errorf("unknown log level %q", name)
	}

	return level, nil
}

// Logger prefixes every badger message with its level and drops messages above
// the configured level.
type Logger struct {
	*log.Logger
	level Level
}

// NewDefaultLogger returns a logger writing warnings and errors to the standard
// logger.
func NewDefaultLogger() *Logger {
	return NewLogger(log.Default(), WarningLevel)
}

// NewLogger creates a new logger.
func NewLogger(log *log.Logger, level Level) *Logger {
	return &Logger{
		Logger: log,
		level:  level,
	}
}

func (l *Logger) logf(level Level, prefix, format string, args []interface{}) {
	if l.level >= level {
		// Badger terminates most of its messages with a newline already.
		l.Printf("badger: "+prefix+strings.TrimRight(format, "\n"), args...)
	}
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(ErrorLevel, "error: ", format, args)
}

func (l *Logger) Warningf(format string, args ...interface{}) {
	l.logf(WarningLevel, "warning: ", format, args)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(InfoLevel, "info: ", format, args)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(DebugLevel, "debug: ", format, args)
}
