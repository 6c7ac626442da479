package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile(t *testing.T) {
	root := t.TempDir()
	p := WriteFile(t, "hello", root, "a", "b", "c.txt")

	assert.Equal(t, filepath.Join(root, "a", "b", "c.txt"), p)
	AssertFileContent(t, p, "hello")
}

func TestScript(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bin")
	p := Script(t, dir, "hello", "echo hi\n")

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o100)

	out, err := exec.Command(p).Output()
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(out))
}
