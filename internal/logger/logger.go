// Package logger configures the process wide zerolog logger used by the
// portal commands, the HTTP API and the intake workers.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServiceName is attached to every log event.
const ServiceName = "buyerportal"

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string // trace, debug, info, warn, error
	Format     string // console or json
	TimeFormat string // layout for timestamps, e.g. time.RFC3339
	Output     string // stdout, stderr or a file path
}

// DefaultConfig logs info and above to stdout in console format.
func DefaultConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
		Output:     "stdout",
	}
}

var (
	mu      sync.Mutex
	logFile *os.File
)

// Setup replaces the global logger. A log file opened by an earlier call is closed.
func Setup(config LogConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	mu.Lock()
	defer mu.Unlock()

	var (
		output io.Writer
		file   *os.File
	)
	switch config.Output {
	case "", "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err = os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		output = file
	}

	switch strings.ToLower(config.Format) {
	case "json":
	case "", "console":
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: config.TimeFormat, NoColor: file != nil}
	default:
		if file != nil {
			_ = file.Close()
		}
		return fmt.Errorf("invalid log format %q, expected console or json", config.Format)
	}

	zerolog.SetGlobalLevel(level)
	if config.TimeFormat != "" {
		zerolog.TimeFieldFormat = config.TimeFormat
	}
	log.Logger = zerolog.New(output).With().
		Timestamp().
		Str("service", ServiceName).
		Caller().
		Logger()

	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = file
	return nil
}

// SetVerbose lowers the global level to debug.
func SetVerbose() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithComponent returns a logger with a component field
func WithComponent(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// WithRequestID tags the component logger with the id of an HTTP request.
func WithRequestID(component, requestID string) zerolog.Logger {
	return log.Logger.With().
		Str("component", component).
		Str("request_id", requestID).
		Logger()
}
