// Package logger provides the structured logging facade used by every go-gbn package.
//
// Components log protocol events (handshake transitions, window slides, simulated
// faults, verdicts) as a message plus key-value pairs. The default implementation
// is backed by log/slog; any other framework can be plugged in by implementing Logger.
//
// Log Levels:
//
//   - DebugLevel: per-packet traces (sent/received units, stale ACKs).
//   - InfoLevel: session milestones (handshake complete, parameters, verdict).
//   - WarnLevel: protocol anomalies that are ignored (unexpected flags, timeouts).
//   - ErrorLevel: setup failures and aborted sessions.
//   - FatalLevel: logs, then terminates the process.
package logger

// Level indicates the logging severity level.
type Level = int8

const (
	// DebugLevel logs are voluminous, one or more entries per packet.
	DebugLevel Level = iota - 1
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs are protocol anomalies that the session tolerates.
	WarnLevel
	// ErrorLevel logs are high-priority. A session that completes normally
	// shouldn't generate any error-level logs.
	ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel
)

// Logger defines a common interface for logging.
type Logger interface {
	// Debug logs a message at DebugLevel with the given key-value pairs.
	Debug(msg string, keysAndValues ...any)
	// Info logs a message at InfoLevel with the given key-value pairs.
	Info(msg string, keysAndValues ...any)
	// Warn logs a message at WarnLevel with the given key-value pairs.
	Warn(msg string, keysAndValues ...any)
	// Error logs a message at ErrorLevel with the given key-value pairs.
	Error(msg string, keysAndValues ...any)
	// Fatal logs a message at FatalLevel, then calls os.Exit(1).
	Fatal(msg string, keysAndValues ...any)
	// With creates a child logger carrying the given key-value pairs.
	// Key-values added to the child don't affect the parent, and vice versa.
	With(keyValues ...any) Logger
	// Level returns the minimum enabled level for this logger.
	Level() Level
	// SetLevel sets the minimum enabled level for this logger.
	SetLevel(level Level)
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a Level.
// Unknown names map to InfoLevel and ok is false.
func ParseLevel(name string) (level Level, ok bool) {
	switch name {
	case "debug":
		return DebugLevel, true
	case "info", "":
		return InfoLevel, true
	case "warn", "warning":
		return WarnLevel, true
	case "error":
		return ErrorLevel, true
	default:
		return InfoLevel, false
	}
}
