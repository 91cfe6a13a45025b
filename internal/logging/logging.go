// Package logging provides Gauntlet's logging infrastructure built on
// charmbracelet/log.
//
// It wraps charmbracelet/log to provide a centralized logger factory with
// component prefixes, level configuration, and stderr-only output. All log
// output goes to stderr; stdout is reserved for the run summary and other
// structured output so that CI systems can capture them separately.
//
// Usage:
//
//	// During CLI initialization (PersistentPreRun):
//	logging.Setup(verbose, quiet, jsonFormat)
//
//	// In each package:
//	var logger = logging.New("scheduler")
//	logger.Info("unit finished", "unit", id, "status", status)
//
// Setup must be called before New: charmbracelet/log child loggers copy the
// default logger's state at creation time, so later changes to the default
// logger do not propagate to existing children.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is re-exported so consumers do not need to import
// charmbracelet/log directly.
type Logger = log.Logger

// Level aliases for charmbracelet/log levels, re-exported so consumers do
// not need to import charmbracelet/log directly.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
	LevelFatal = log.FatalLevel
)

// Setup configures the global logging defaults. Call once during CLI
// initialization.
//
// Parameters:
//   - verbose: sets level to Debug (shows all messages)
//   - quiet: sets level to Error (hides Info and Warn messages)
//   - jsonFormat: switches to the JSON formatter (NDJSON, suitable for CI
//     log aggregation)
//
// If both verbose and quiet are set, quiet wins: in scripted environments
// --quiet must suppress noise regardless of other flags.
func Setup(verbose, quiet, jsonFormat bool) {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	if quiet {
		level = log.ErrorLevel
	}

	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if jsonFormat {
		log.SetFormatter(log.JSONFormatter)
	} else {
		log.SetFormatter(log.TextFormatter)
	}
}

// New creates a logger with the given component prefix.
//
// The returned logger inherits global level and output settings from the
// default logger at creation time. An empty component string produces a
// logger without a prefix.
//
// Example:
//
//	logger := logging.New("topology")
//	logger.Info("cluster ready", "nodes", 3)
//	// Output: INFO <topology> cluster ready nodes=3
func New(component string) *log.Logger {
	return log.WithPrefix(component)
}

// SetOutput overrides the output writer for the default logger.
//
// Primarily useful in tests, where output can be captured with a
// bytes.Buffer. Restore the original output with t.Cleanup.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}
