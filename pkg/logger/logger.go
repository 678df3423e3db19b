// Package logger wraps zerolog behind a small structured API and houses the
// aggregating collector that hot paths use to batch repetitive lines.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the application logger.
type Logger struct {
	zl zerolog.Logger
}

// Config controls level, encoding and destination.
type Config struct {
	Level      string // debug, info, warn, error, fatal, panic
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string // time format for log messages
}

// New builds a logger. Unknown outputs are treated as file paths.
func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	switch cfg.Output {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
	}

	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
			NoColor:    false,
		}
	}

	// Skip count covers the wrapper frame so caller points at user code.
	zl := zerolog.New(output).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()

	return &Logger{zl: zl}, nil
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.emit(l.zl.Debug(), msg, fields)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.emit(l.zl.Info(), msg, fields)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.emit(l.zl.Warn(), msg, fields)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.emit(l.zl.Error(), msg, fields)
}

func (l *Logger) emit(event *zerolog.Event, msg string, fields []Field) {
	for _, field := range fields {
		field.AddTo(event)
	}
	event.Msg(msg)
}

// Field is one typed key/value attached to a log line.
type Field interface {
	AddTo(event *zerolog.Event)
}

type stringField struct {
	key   string
	value string
}

func (f stringField) AddTo(event *zerolog.Event) {
	event.Str(f.key, f.value)
}

type intField struct {
	key   string
	value int
}

func (f intField) AddTo(event *zerolog.Event) {
	event.Int(f.key, f.value)
}

type int64Field struct {
	key   string
	value int64
}

func (f int64Field) AddTo(event *zerolog.Event) {
	event.Int64(f.key, f.value)
}

type boolField struct {
	key   string
	value bool
}

func (f boolField) AddTo(event *zerolog.Event) {
	event.Bool(f.key, f.value)
}

type errorField struct {
	value error
}

func (f errorField) AddTo(event *zerolog.Event) {
	event.Err(f.value)
}

// String attaches a string value.
func String(key, value string) Field {
	return stringField{key: key, value: value}
}

// Int attaches an int value.
func Int(key string, value int) Field {
	return intField{key: key, value: value}
}

// Int64 attaches an int64 value.
func Int64(key string, value int64) Field {
	return int64Field{key: key, value: value}
}

// Bool attaches a bool value.
func Bool(key string, value bool) Field {
	return boolField{key: key, value: value}
}

// Error attaches an error under the "error" key.
func Error(err error) Field {
	return errorField{value: err}
}

// Duration attaches a duration in whole milliseconds.
func Duration(key string, value time.Duration) Field {
	return intField{key: key, value: int(value / time.Millisecond)}
}

// Strings attaches a slice joined with commas.
func Strings(key string, value []string) Field {
	return stringField{key: key, value: strings.Join(value, ", ")}
}
