// Package log provides a simple, leveled logging interface for the GASL
// engine.
//
// The Logger interface decouples engine components from any particular
// logging backend. Two implementations ship with the package: a
// DefaultLogger built on the standard library, and a GologLogger built on
// kataras/golog for colorized interactive output. A NoOpLogger silences
// everything, which tests use.
//
// # Log Levels
//
// The package supports five log levels, in order of increasing severity:
//
//   - LogLevelDebug: Detailed debugging information for development
//   - LogLevelInfo: General informational messages about normal operation
//   - LogLevelWarn: Warning messages for potentially problematic situations
//   - LogLevelError: Error messages for failures that need attention
//   - LogLevelNone: Disables all logging output
//
// # Example Usage
//
//	logger := log.NewGologLogger(golog.New())
//	logger.SetLevel(log.LogLevelDebug)
//	logger.Info("run %s started", runID)
//
// A package-level logger is also available for code without an injected
// Logger:
//
//	log.SetLogLevel(log.LogLevelDebug)
//	log.Debug("plan accepted with %d commands", n)
package log
