// pkg/build/types.go

package build

import "time"

// DefaultPatterns are the project descriptors searched for when none are configured.
var DefaultPatterns = []string{"*.sln", "*.csproj"}

// DefaultTimeout bounds a single build invocation.
const DefaultTimeout = 30 * time.Minute

// skipDirs are never descended into while searching for descriptors.
var skipDirs = map[string]bool{"bin": true, "obj": true, ".git": true}

// Target is a resolved build invocation.
type Target struct {
	ProjectFile   string
	Configuration string
	WorkDir       string
}
