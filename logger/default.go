package logger

import "sync/atomic"

// defLogger holds the package-level logger; components fall back to it when
// no logger is configured.
var defLogger atomic.Pointer[Logger]

func init() {
	SetLogger(NewSlog(InfoLevel, false))
}

func current() Logger {
	return *defLogger.Load()
}

func Debug(msg string, keysAndValues ...any) {
	current().Debug(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...any) {
	current().Info(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...any) {
	current().Warn(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...any) {
	current().Error(msg, keysAndValues...)
}

func Fatal(msg string, keysAndValues ...any) {
	current().Fatal(msg, keysAndValues...)
}

func SetLevel(level Level) {
	current().SetLevel(level)
}

// GetLogger returns the package-level default logger.
func GetLogger() Logger {
	return current()
}

// SetLogger replaces the package-level default logger. A nil l is ignored.
// It is safe to call while other goroutines log.
func SetLogger(l Logger) {
	if l != nil {
		defLogger.Store(&l)
	}
}

func With(keyValues ...any) Logger {
	return current().With(keyValues...)
}
