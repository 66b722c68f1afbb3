// Package common provides shared utilities used across the deploy client:
// structured logger setup and build/client identity.
package common

import (
	"log/slog"
	"os"
)

// LoggingOpts configures the process logger. Log level and output format are
// explicit configuration, there is no global debug toggle.
type LoggingOpts struct {
	// Debug enables debug-level logging
	Debug bool

	// JSON enables JSON log output (text handler otherwise)
	JSON bool

	// Service is added as a 'service' attribute to all log records
	Service string

	// Version is added as a 'version' attribute to all log records
	Version string
}

// SetupLogger creates a slog.Logger according to the given options.
// Components receive this logger at construction and never consult
// process-wide state for log configuration.
func SetupLogger(opts *LoggingOpts) (log *slog.Logger) {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	if opts.JSON {
		log = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	} else {
		log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	}

	if opts.Service != "" {
		log = log.With("service", opts.Service)
	}
	if opts.Version != "" {
		log = log.With("version", opts.Version)
	}
	return log
}
