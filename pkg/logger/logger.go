package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

type Logger struct {
	level       atomic.Int32
	debugLogger *log.Logger
	infoLogger  *log.Logger
	warnLogger  *log.Logger
	errorLogger *log.Logger
}

func New() *Logger {
	l := &Logger{
		debugLogger: log.New(os.Stdout, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile),
		infoLogger:  log.New(os.Stdout, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile),
		warnLogger:  log.New(os.Stderr, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile),
		errorLogger: log.New(os.Stderr, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile),
	}
	l.level.Store(int32(LevelInfo))
	return l
}

func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *Logger) enabled(level Level) bool {
	return Level(l.level.Load()) <= level
}

func (l *Logger) writer(level Level) *log.Logger {
	switch level {
	case LevelDebug:
		return l.debugLogger
	case LevelWarn:
		return l.warnLogger
	case LevelError:
		return l.errorLogger
	default:
		return l.infoLogger
	}
}

// logf reports the caller calldepth frames above itself, as log.Output does.
func (l *Logger) logf(level Level, calldepth int, format string, v ...interface{}) {
	if l.enabled(level) {
		l.writer(level).Output(calldepth+1, sprintf(format, v...))
	}
}

func (l *Logger) fatalf(calldepth int, format string, v ...interface{}) {
	l.errorLogger.Output(calldepth+1, sprintf(format, v...))
	os.Exit(1)
}

func (l *Logger) Debug(format string, v ...interface{}) {
	l.logf(LevelDebug, 2, format, v...)
}

func (l *Logger) Info(format string, v ...interface{}) {
	l.logf(LevelInfo, 2, format, v...)
}

func (l *Logger) Warn(format string, v ...interface{}) {
	l.logf(LevelWarn, 2, format, v...)
}

func (l *Logger) Error(format string, v ...interface{}) {
	l.logf(LevelError, 2, format, v...)
}

func (l *Logger) Fatal(format string, v ...interface{}) {
	l.fatalf(2, format, v...)
}

func sprintf(format string, v ...interface{}) string {
	if len(v) == 0 {
		return format
	}
	return fmt.Sprintf(format, v...)
}

// Global logger instance
var GlobalLogger = New()

// Convenience functions
func SetLevel(level string) {
	GlobalLogger.SetLevel(ParseLevel(level))
}

func Debug(format string, v ...interface{}) {
	GlobalLogger.logf(LevelDebug, 2, format, v...)
}

func Info(format string, v ...interface{}) {
	GlobalLogger.logf(LevelInfo, 2, format, v...)
}

func Warn(format string, v ...interface{}) {
	GlobalLogger.logf(LevelWarn, 2, format, v...)
}

func Error(format string, v ...interface{}) {
	GlobalLogger.logf(LevelError, 2, format, v...)
}

func Fatal(format string, v ...interface{}) {
	GlobalLogger.fatalf(2, format, v...)
}
