package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logger used across the service. Fields are passed
// as alternating key/value pairs: log.Info("Room created", "room_id", id).
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Fatal(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New returns a JSON logger writing to stdout at the given level.
func New(level string) Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zl := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
	return &zeroLogger{zl: zl}
}

// NewNop discards everything. Used in tests.
func NewNop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (l *zeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	write(l.zl.Debug(), msg, keysAndValues)
}

func (l *zeroLogger) Info(msg string, keysAndValues ...interface{}) {
	write(l.zl.Info(), msg, keysAndValues)
}

func (l *zeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	write(l.zl.Warn(), msg, keysAndValues)
}

func (l *zeroLogger) Error(msg string, keysAndValues ...interface{}) {
	write(l.zl.Error(), msg, keysAndValues)
}

func (l *zeroLogger) Fatal(msg string, keysAndValues ...interface{}) {
	write(l.zl.Fatal(), msg, keysAndValues)
}

func (l *zeroLogger) With(keysAndValues ...interface{}) Logger {
	return &zeroLogger{zl: l.zl.With().Fields(normalize(keysAndValues)).Logger()}
}

func write(e *zerolog.Event, msg string, keysAndValues []interface{}) {
	if len(keysAndValues) > 0 {
		e = e.Fields(normalize(keysAndValues))
	}
	e.Msg(msg)
}

// normalize pads an odd-length list so the last key is not silently dropped.
func normalize(keysAndValues []interface{}) []interface{} {
	if len(keysAndValues)%2 == 0 {
		return keysAndValues
	}
	return append(keysAndValues, "(MISSING)")
}
