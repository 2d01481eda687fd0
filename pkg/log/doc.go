// Package log provides structured event logging for meter communication.
//
// This package defines the Logger interface and Event types for capturing
// transport and update events: connection lifecycle, register reads, REST
// calls, update cycles and discovery hits. It is separate from operational
// logging (slog) - event capture provides a complete machine-readable trace
// of every exchange with a meter for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	logger, _ := log.NewFileLogger("/var/log/iskra/meters.ilog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files use CBOR encoding with .ilog extension. Reader streams them
// back with optional filtering by event type, serial or time range.
package log
