package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger implements the ports.Logger interface on top of zerolog.
type Logger struct {
	zl    zerolog.Logger
	level LogLevel
}

// LogLevel defines the logging level.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
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
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel converts a string level to LogLevel.
func ParseLevel(levelStr string) LogLevel {
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo // Default to Info
	}
}

// UnmarshalText lets config files name the level.
func (l *LogLevel) UnmarshalText(text []byte) error {
	*l = ParseLevel(strings.TrimSpace(string(text)))
	return nil
}

// Format selects the output encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// New creates a logger writing to w. Console format is human readable,
// anything else writes one JSON object per line.
func New(w io.Writer, level LogLevel, format Format) *Logger {
	if w == nil {
		w = os.Stderr
	}
	if format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	zl := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Str("service", "sniper").Logger()
	return &Logger{zl: zl, level: level}
}

// NewConsole creates a console logger on stderr.
func NewConsole(level LogLevel) *Logger {
	return New(os.Stderr, level, FormatConsole)
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

func (l *Logger) log(ctx context.Context, ev *zerolog.Event, msg string, fields ...map[string]interface{}) {
	if ev == nil {
		return // Below the configured threshold
	}
	if len(fields) > 0 && fields[0] != nil {
		ev = ev.Fields(fields[0])
	}
	ev.Msg(msg)
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, l.zl.Debug(), msg, fields...)
}

// Info logs a message at Info level.
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, l.zl.Info(), msg, fields...)
}

// Warn logs a message at Warning level.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log(ctx, l.zl.Warn(), msg, fields...)
}

// Error logs an error message at Error level.
func (l *Logger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.log(ctx, l.zl.Error().Err(err), msg, fields...)
}

// Level returns the configured threshold.
func (l *Logger) Level() LogLevel { return l.level }
