// pkg/locator/locator.go

package locator

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// DefaultSearchDirs are tried in order, relative to the repository root.
// Release beats Debug and the newer runtime beats the older one.
var DefaultSearchDirs = []string{
	filepath.Join("PoGoEncTool.WinForms", "bin", "Release", "net9.0-windows"),
	filepath.Join("PoGoEncTool.WinForms", "bin", "Debug", "net9.0-windows"),
	filepath.Join("PoGoEncTool.WinForms", "bin", "Release", "net8.0-windows"),
	filepath.Join("PoGoEncTool.WinForms", "bin", "Debug", "net8.0-windows"),
	filepath.Join("bin", "Release"),
	filepath.Join("bin", "Debug"),
	".",
}

// DefaultExtension is ".exe" on Windows and empty elsewhere.
func DefaultExtension() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// Locator finds the built update executable inside a repository.
type Locator struct {
	ProductNames []string
	SearchDirs   []string
	Extension    string
	logger       *zap.Logger
}

func New(logger *zap.Logger, productNames, searchDirs []string, ext string) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(searchDirs) == 0 {
		searchDirs = DefaultSearchDirs
	}
	return &Locator{
		ProductNames: productNames,
		SearchDirs:   searchDirs,
		Extension:    ext,
		logger:       logger.Named("locator"),
	}
}

// Find returns the first matching executable under repoRoot.
func (l *Locator) Find(repoRoot string) (string, bool) {
	for _, rel := range l.SearchDirs {
		if exe, ok := l.scanDir(repoRoot, rel); ok {
			l.logger.Info("Found executable", zap.String("path", exe), zap.String("search_dir", rel))
			return exe, true
		}
	}

	l.logger.Debug("No executable in standard locations, searching recursively", zap.String("root", repoRoot))
	var found []string
	_ = filepath.WalkDir(repoRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(repoRoot, p)
		if err != nil || containsFold(rel, "backup") {
			return nil
		}
		if l.matches(p, d) {
			found = append(found, p)
		}
		return nil
	})
	if len(found) == 0 {
		l.logger.Warn("Executable not found",
			zap.String("root", repoRoot),
			zap.Strings("product_names", l.ProductNames))
		return "", false
	}
	sort.Strings(found)
	exe := absolute(found[0])
	l.logger.Info("Found executable by recursive search", zap.String("path", exe))
	return exe, true
}

// scanDir checks the top level of repoRoot/rel only.
func (l *Locator) scanDir(repoRoot, rel string) (string, bool) {
	dir := filepath.Join(repoRoot, rel)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, e := range entries { // ReadDir is sorted by name
		if e.IsDir() || containsFold(filepath.Join(rel, e.Name()), "backup") {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if l.matches(p, e) {
			return absolute(p), true
		}
	}
	return "", false
}

func absolute(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func (l *Locator) matches(path string, d fs.DirEntry) bool {
	name := d.Name()
	if l.Extension != "" {
		if !strings.EqualFold(filepath.Ext(name), l.Extension) {
			return false
		}
	} else {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() || info.Mode().Perm()&0o100 == 0 {
			return false
		}
	}
	for _, product := range l.ProductNames {
		if containsFold(name, product) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
