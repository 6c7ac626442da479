/* pkg/logger/paths.go */

package logger

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
)

const logFileName = "regen.log"

// PlatformLogPaths returns candidate log paths in order of priority for the platform.
func PlatformLogPaths() []string {
	if p := os.Getenv("REGEN_LOG_FILE"); p != "" {
		return []string{p}
	}
	switch runtime.GOOS {
	case "windows":
		return []string{
			filepath.Join(os.Getenv("LOCALAPPDATA"), xdg.AppID, logFileName),
			filepath.Join(".", logFileName),
		}
	default:
		return []string{
			xdg.XDGStatePath(xdg.AppID, logFileName),
			filepath.Join(".", logFileName),
			filepath.Join(os.TempDir(), xdg.AppID, logFileName),
		}
	}
}
