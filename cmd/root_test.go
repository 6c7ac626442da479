package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	RegisterCommands()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "settings.json")

	out, err := run(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.True(t, regen_err.IsExpectedUserError(err))

	out, err = run(t, "config", "show", "--yaml", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "EventsGallery")
	assert.Contains(t, out, "repo_folder:")
}

func TestUpdatePacksLocalSource(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	repos := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repos, "out"), 0o755))
	gallery := filepath.Join(repos, "Gallery", "Released")
	require.NoError(t, os.MkdirAll(gallery, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(gallery, "a.wc9"), []byte("0123456789"), 0o644))

	s := &config.Settings{
		RepoFolder:         repos,
		OutputPath:         "out",
		ToolTimeoutMinutes: 1,
		BuildTool:          "dotnet",
		Backup:             config.BackupSettings{MaxBackups: 2},
		Sources: []config.Source{{
			Name: "Gallery",
			Path: "Gallery",
			Pack: &config.PackSettings{
				OutputSubdir: "mgdb",
				Groups:       []config.PackGroup{{Name: "Gen 9", Input: "Released", Extensions: []string{"wc9"}}},
			},
		}},
	}
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, config.Write(path, s))

	out, err := run(t, "update", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Update complete.")
	assert.Contains(t, out, "1 of 1 sources completed")

	blob, err := os.ReadFile(filepath.Join(repos, "out", "mgdb", "wc9.pkl"))
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(blob))
}

func TestUpdateMissingOutputExitsWithConfigCode(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	s := config.Default()
	s.RepoFolder = t.TempDir()
	s.OutputPath = "missing"
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, config.Write(path, s))

	_, err := run(t, "update", "--config", path)
	require.Error(t, err)
	assert.Equal(t, 2, regen_err.GetExitCode(err))
}
