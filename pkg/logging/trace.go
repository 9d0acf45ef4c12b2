package logging

import "log/slog"

// EnableTrace gates per-item trace logs in hot loops (one line per pack
// during discovery). Off by default; flipping it on does not require a
// logger rebuild.
var EnableTrace = false

// Trace logs through the given logger at DEBUG level when tracing is on.
func Trace(logger *slog.Logger, msg string, args ...any) {
	if EnableTrace {
		logger.Debug(msg, args...)
	}
}

// TraceDefault logs through the default logger when tracing is on.
func TraceDefault(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}
