package detect

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	gogit "github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var galleryKind = Kind{Name: "EventsGallery", Identifiers: []string{"Released/Gen 9", "Released/Gen 8", "Released/Gen 7", "Released/Gen 6"}}

func makeRepo(t *testing.T, dir string, paths ...string) {
	t.Helper()
	_, err := gogit.PlainInit(dir, false)
	require.NoError(t, err)
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, filepath.FromSlash(p)), 0o755))
	}
}

func TestMatches(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Released", "Gen 9"), 0o755))

	assert.False(t, matches(dir, galleryKind.Identifiers), "1 of 4")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Released", "Gen 8"), 0o755))
	assert.True(t, matches(dir, galleryKind.Identifiers), "2 of 4")

	assert.False(t, matches(dir, nil))
}

func TestScan(t *testing.T) {
	root := t.TempDir()

	makeRepo(t, filepath.Join(root, "code", "EventsGallery"), "Released/Gen 9", "Released/Gen 8", "Released/Gen 7")
	// not enough identifiers
	makeRepo(t, filepath.Join(root, "code", "other"), "Released/Gen 9")
	// identifiers present but not a repository
	require.NoError(t, os.MkdirAll(filepath.Join(root, "plain", "Released", "Gen 9"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "plain", "Released", "Gen 8"), 0o755))
	// hidden behind a skipped directory
	makeRepo(t, filepath.Join(root, "node_modules", "EventsGallery"), "Released/Gen 9", "Released/Gen 8")
	// too deep
	makeRepo(t, filepath.Join(root, "a", "b", "c", "d", "EventsGallery"), "Released/Gen 9", "Released/Gen 8")

	s := New(zaptest.NewLogger(t), []Kind{galleryKind}, []string{root, root, filepath.Join(root, "missing")})
	results, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, results, 1, "duplicate roots collapse to one result")
	assert.Equal(t, "EventsGallery", results[0].Kind)
	assert.Equal(t, filepath.Join(root, "code", "EventsGallery"), results[0].Path)
	assert.False(t, results[0].LastModified.IsZero())
}

func TestSkip(t *testing.T) {
	for _, name := range []string{".git", "node_modules", "AppData", "Program Files (x86)", "tmp"} {
		assert.True(t, skip(name), name)
	}
	for _, name := range []string{"EventsGallery", "source", "repos"} {
		assert.False(t, skip(name), name)
	}
}

func TestApply(t *testing.T) {
	s := config.Default()
	s.RepoFolder = "/repos"

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(48 * time.Hour)
	results := []Result{
		{Kind: "EventsGallery", Path: "/old/EventsGallery", LastModified: older},
		{Kind: "eventsgallery", Path: "/new/EventsGallery", LastModified: newer},
		{Kind: "PoGoEncTool", Path: "/repos/PoGoEncTool", LastModified: newer},
	}

	changed := Apply(s, results)
	assert.Equal(t, []string{"EventsGallery"}, changed)

	src, ok := s.Source("EventsGallery")
	require.True(t, ok)
	assert.Equal(t, "/new/EventsGallery", src.Path)
}

func TestKindsFromSettings(t *testing.T) {
	kinds := KindsFromSettings(config.Default())
	require.Len(t, kinds, 2)
	assert.Equal(t, "EventsGallery", kinds[0].Name)
}
