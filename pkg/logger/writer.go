// pkg/logger/writer.go

package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	"go.uber.org/zap/zapcore"
)

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), xdg.FilePermOwnerRWX); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, xdg.FilePermOwnerReadWrite)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// GetLogFileWriter opens path for appending, creating its directory first.
func GetLogFileWriter(path string) (zapcore.WriteSyncer, error) {
	file, err := openLogFile(path)
	if err != nil {
		return nil, err
	}
	return zapcore.AddSync(file), nil
}

// FindWritableLogPath returns the first usable log path.
func FindWritableLogPath() (string, error) {
	for _, path := range PlatformLogPaths() {
		if path == "" {
			continue
		}
		file, err := openLogFile(path)
		if err != nil {
			continue
		}
		_ = file.Close()
		return path, nil
	}
	return "", fmt.Errorf("no writable log path found")
}
