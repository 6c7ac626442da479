package logger

import (
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

var log *zap.Logger

// L returns the process logger, falling back to a console logger when
// InitializeWithFallback has not run yet.
func L() *zap.Logger {
	if log == nil {
		log = NewFallbackLogger()
	}
	return log
}

// Replace installs l as the process logger for zap and otelzap.
func Replace(l *zap.Logger) {
	log = l
	zap.ReplaceGlobals(l)
	otelzap.ReplaceGlobals(otelzap.New(l))
}

// Sync flushes any buffered log entries. Should be called before the application exits.
func Sync() error {
	if log == nil {
		return nil
	}
	return log.Sync()
}
