/* pkg/logger/fallback.go */

package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// consoleLevel gates console output; the file core always records debug.
var consoleLevel = zap.NewAtomicLevelAt(ParseLogLevel(os.Getenv("LOG_LEVEL")))

// SetLevel changes the console level at runtime, e.g. from --log-level.
func SetLevel(level zapcore.Level) {
	consoleLevel.SetLevel(level)
}

func NewFallbackLogger() *zap.Logger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()),
		zapcore.Lock(os.Stderr),
		consoleLevel,
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// InitializeWithFallback tees console output with a JSON log file at the
// first writable platform path. Without a writable path it logs to the
// console only.
func InitializeWithFallback() {
	consoleLevel.SetLevel(ParseLogLevel(os.Getenv("LOG_LEVEL")))

	path, err := FindWritableLogPath()
	if err != nil {
		fmt.Fprintln(os.Stderr, "⚠️  No writable log path found. Logging to console only.")
		Replace(NewFallbackLogger())
		return
	}

	writer, err := GetLogFileWriter(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "⚠️  Could not write to log file, logging to console only:", err)
		Replace(NewFallbackLogger())
		return
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewConsoleEncoder(DefaultConsoleEncoderConfig()), zapcore.Lock(os.Stderr), consoleLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(DefaultFileEncoderConfig()), writer, zapcore.DebugLevel),
	)

	Replace(zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)))
	log.Debug("Logger initialized",
		zap.String("log_level", consoleLevel.String()),
		zap.String("log_path", path),
	)
}
