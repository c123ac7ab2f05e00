package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the severity of an Event record.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger provides structured, leveled logging throughout the application.
// The printf methods write coloured lines; Event writes zap key/value
// records to the same stream.
type Logger struct {
	info  *log.Logger
	warn  *log.Logger
	err   *log.Logger
	debug *log.Logger

	events *zap.Logger
	level  zap.AtomicLevel

	debugEnabled bool
}

// NewLogger creates a new Logger writing to stdout/stderr.
func NewLogger() *Logger {
	flags := 0
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return &Logger{
		info:         log.New(os.Stdout, "", flags),
		warn:         log.New(os.Stdout, "", flags),
		err:          log.New(os.Stderr, "", flags),
		debug:        log.New(os.Stdout, "", flags),
		events:       newEventLogger(os.Stdout, level),
		level:        level,
		debugEnabled: true,
	}
}

// NewLoggerTo sends every level to w. Tests pass io.Discard.
func NewLoggerTo(w io.Writer) *Logger {
	l := log.New(w, "", 0)
	level := zap.NewAtomicLevelAt(zapcore.DebugLevel)
	return &Logger{
		info:         l,
		warn:         l,
		err:          l,
		debug:        l,
		events:       newEventLogger(w, level),
		level:        level,
		debugEnabled: true,
	}
}

func newEventLogger(w io.Writer, level zap.AtomicLevel) *zap.Logger {
	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "ts"
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

// SetDebug toggles Debug output.
func (l *Logger) SetDebug(on bool) {
	l.debugEnabled = on
	if on {
		l.level.SetLevel(zapcore.DebugLevel)
	} else {
		l.level.SetLevel(zapcore.InfoLevel)
	}
}

// Sync flushes buffered event records.
func (l *Logger) Sync() error {
	return l.events.Sync()
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}

func (l *Logger) Info(format string, args ...any) {
	l.info.Printf(fmt.Sprintf("[%s] \033[32mINFO\033[0m  %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.warn.Printf(fmt.Sprintf("[%s] \033[33mWARN\033[0m  %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.err.Printf(fmt.Sprintf("[%s] \033[31mERROR\033[0m %s\n", l.timestamp(), format), args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debugEnabled {
		return
	}
	l.debug.Printf(fmt.Sprintf("[%s] \033[36mDEBUG\033[0m %s\n", l.timestamp(), format), args...)
}

// Event logs msg with key/value fields. Nil values are dropped.
func (l *Logger) Event(level Level, msg string, kv ...any) {
	fields := eventFields(kv)
	switch level {
	case LevelDebug:
		l.events.Debug(msg, fields...)
	case LevelWarn:
		l.events.Warn(msg, fields...)
	case LevelError:
		l.events.Error(msg, fields...)
	default:
		l.events.Info(msg, fields...)
	}
}

func eventFields(kv []any) []zap.Field {
	fields := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == nil {
			continue
		}
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, zap.Any(key, kv[i+1]))
	}
	return fields
}
