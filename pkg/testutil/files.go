// Package testutil holds the filesystem helpers shared by regen's tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile writes content to the path formed by joining parts, creating
// parent directories as needed, and returns that path.
func WriteFile(t *testing.T, content string, parts ...string) string {
	t.Helper()
	p := filepath.Join(parts...)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

// SkipOnWindows skips tests that rely on /bin/sh scripts.
func SkipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not available on Windows")
	}
}

// Script writes an executable shell script named name into dir. The
// "#!/bin/sh" line is prepended to body.
func Script(t *testing.T, dir, name, body string) string {
	t.Helper()
	SkipOnWindows(t)
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body), 0o755))
	return p
}

// AssertFileContent fails the test unless path holds exactly want.
func AssertFileContent(t *testing.T, path, want string) {
	t.Helper()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, want, string(got), "content of %s", path)
}
