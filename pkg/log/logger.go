// Package log provides structured logging for the training stack, built on
// rs/zerolog. Components obtain named loggers and emit events with
// alternating key/value pairs:
//
//	logger := log.GetLoggerWithName("tree.searcher")
//	logger.Info("best split", "depth", depth, "feature", id, "score", score)
package log

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Level aliases, so callers do not need a zerolog import.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// SetLevel sets the global log level.
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// SetOutput redirects all loggers, useful in tests.
func SetOutput(w zerolog.LevelWriter) {
	mu.Lock()
	defer mu.Unlock()
	root = zerolog.New(w).With().Timestamp().Logger()
}

// Logger is a named structured logger.
type Logger struct {
	zl zerolog.Logger
}

// GetLogger returns the root logger.
func GetLogger() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &Logger{zl: root}
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &Logger{zl: root.With().Str("logger", name).Logger()}
}

// Debug logs at debug level with alternating key/value pairs.
func (l *Logger) Debug(msg string, keysAndValues ...any) {
	emit(l.zl.Debug(), msg, keysAndValues)
}

// Info logs at info level with alternating key/value pairs.
func (l *Logger) Info(msg string, keysAndValues ...any) {
	emit(l.zl.Info(), msg, keysAndValues)
}

// Warn logs at warn level with alternating key/value pairs.
func (l *Logger) Warn(msg string, keysAndValues ...any) {
	emit(l.zl.Warn(), msg, keysAndValues)
}

// Error logs at error level with alternating key/value pairs.
func (l *Logger) Error(msg string, keysAndValues ...any) {
	emit(l.zl.Error(), msg, keysAndValues)
}

func emit(ev *zerolog.Event, msg string, kvs []any) {
	for i := 0; i+1 < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kvs[i+1])
	}
	ev.Msg(msg)
}
