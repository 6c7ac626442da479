// pkg/build/resolve.go

package build

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// ResolveProject turns path into a project descriptor. A descriptor file is
// used as is. For a directory the top level is searched before the whole
// tree, and a descriptor whose name contains preferred wins over the
// first match in lexical order.
func ResolveProject(path, preferred string, patterns []string) (string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", cerr.Wrapf(err, "project path %s", path)
	}
	if !info.IsDir() {
		if matchesAny(filepath.Base(path), patterns) {
			return path, nil
		}
		return "", cerr.Newf("%s is not a project descriptor (want %s)", path, strings.Join(patterns, ", "))
	}

	top, err := topLevel(path, patterns)
	if err != nil {
		return "", err
	}
	if pick := choose(top, preferred); pick != "" {
		return pick, nil
	}

	deep, err := recursive(path, patterns)
	if err != nil {
		return "", err
	}
	if pick := choose(deep, preferred); pick != "" {
		return pick, nil
	}
	return "", cerr.Newf("no project descriptor (%s) found under %s", strings.Join(patterns, ", "), path)
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(strings.ToLower(p), strings.ToLower(name)); ok {
			return true
		}
	}
	return false
}

// choose returns the first entry whose base name contains preferred, else the first entry.
func choose(found []string, preferred string) string {
	if len(found) == 0 {
		return ""
	}
	if preferred != "" {
		hint := strings.ToLower(preferred)
		for _, f := range found {
			if strings.Contains(strings.ToLower(filepath.Base(f)), hint) {
				return f
			}
		}
	}
	return found[0]
}

func topLevel(dir string, patterns []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, cerr.Wrapf(err, "read %s", dir)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && matchesAny(e.Name(), patterns) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

func recursive(root string, patterns []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtree, keep looking elsewhere
		}
		if d.IsDir() {
			if p != root && skipDirs[strings.ToLower(d.Name())] {
				return filepath.SkipDir
			}
			return nil
		}
		if matchesAny(d.Name(), patterns) {
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, cerr.Wrapf(err, "walk %s", root)
	}
	sort.Strings(out)
	return out, nil
}
