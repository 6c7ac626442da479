// pkg/detect/detect.go
//
// Finds local checkouts of the configured sources by scanning likely
// directories for git repositories whose layout matches a source's
// identifier paths.

package detect

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/git"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxDepth = 3

// systemDirs are skipped wherever they appear; matched as substrings of the
// lower-cased directory name.
var systemDirs = []string{
	"windows", "program files", "programdata", "$recycle.bin",
	"system volume information", "recovery", "perflogs", "appdata",
	"temp", "tmp",
}

// Kind is a repository type recognised by the paths it contains.
type Kind struct {
	Name        string
	Identifiers []string // slash-separated, relative to the repo root
}

// Result is one detected repository.
type Result struct {
	Kind         string
	Path         string
	LastModified time.Time
}

// Scanner searches Roots for repositories of the given Kinds.
type Scanner struct {
	Roots    []string
	Kinds    []Kind
	MaxDepth int
	logger   *zap.Logger
}

func New(logger *zap.Logger, kinds []Kind, roots []string) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(roots) == 0 {
		roots = DefaultRoots()
	}
	return &Scanner{Roots: roots, Kinds: kinds, MaxDepth: DefaultMaxDepth, logger: logger.Named("detect")}
}

// DefaultRoots are the usual places people keep checkouts.
func DefaultRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		home,
		filepath.Join(home, "source", "repos"),
		filepath.Join(home, "Documents"),
		filepath.Join(home, "GitHub"),
		filepath.Join(home, "GitLab"),
		filepath.Join(home, "Projects"),
		filepath.Join(home, "src"),
	}
}

// KindsFromSettings turns every source that declares identifiers into a Kind.
func KindsFromSettings(s *config.Settings) []Kind {
	var kinds []Kind
	for _, src := range s.Sources {
		if len(src.Identifiers) > 0 {
			kinds = append(kinds, Kind{Name: src.Name, Identifiers: src.Identifiers})
		}
	}
	return kinds
}

// Scan walks every existing root concurrently. Results are de-duplicated by
// path (case-insensitive) and sorted by kind, then path.
func (s *Scanner) Scan(ctx context.Context) ([]Result, error) {
	ctx, span := telemetry.Start(ctx, "detect.Scan", attribute.Int("roots", len(s.Roots)))
	defer span.End()

	perRoot := make([][]Result, len(s.Roots))
	g, gctx := errgroup.WithContext(ctx)
	for i, root := range s.Roots {
		if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
			continue
		}
		g.Go(func() error {
			var found []Result
			s.walk(gctx, root, 0, &found)
			perRoot[i] = found
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var results []Result
	for _, found := range perRoot {
		for _, r := range found {
			key := strings.ToLower(r.Path)
			if seen[key] {
				continue
			}
			seen[key] = true
			results = append(results, r)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Kind != results[j].Kind {
			return results[i].Kind < results[j].Kind
		}
		return results[i].Path < results[j].Path
	})

	s.logger.Info("Repository scan complete", zap.Int("found", len(results)))
	return results, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, depth int, out *[]Result) {
	if depth > s.MaxDepth || ctx.Err() != nil {
		return
	}

	if isDir(filepath.Join(dir, ".git")) && git.IsRepository(dir) {
		if r, ok := s.identify(dir); ok {
			s.logger.Debug("Found repository", zap.String("kind", r.Kind), zap.String("path", dir))
			*out = append(*out, r)
			return
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Debug("Cannot read directory", zap.String("path", dir), zap.Error(err))
		return
	}
	for _, e := range entries {
		if !e.IsDir() || skip(e.Name()) {
			continue
		}
		s.walk(ctx, filepath.Join(dir, e.Name()), depth+1, out)
	}
}

func (s *Scanner) identify(dir string) (Result, bool) {
	for _, k := range s.Kinds {
		if !matches(dir, k.Identifiers) {
			continue
		}
		return Result{Kind: k.Name, Path: dir, LastModified: lastModified(dir)}, true
	}
	return Result{}, false
}

// matches requires at least half of the identifiers (rounded up) to exist.
func matches(dir string, identifiers []string) bool {
	if len(identifiers) == 0 {
		return false
	}
	hits := 0
	for _, id := range identifiers {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(id))); err == nil {
			hits++
		}
	}
	return hits*2 >= len(identifiers)
}

func lastModified(dir string) time.Time {
	if st, err := git.Inspect(dir, false); err == nil && !st.LastCommit.IsZero() {
		return st.LastCommit
	}
	if fi, err := os.Stat(dir); err == nil {
		return fi.ModTime()
	}
	return time.Time{}
}

func skip(name string) bool {
	lower := strings.ToLower(name)
	if lower == ".git" || lower == "node_modules" {
		return true
	}
	for _, sd := range systemDirs {
		if strings.Contains(lower, sd) {
			return true
		}
	}
	return false
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

// Apply points each source at the newest detected repository of its kind.
// It returns the names of the sources that changed.
func Apply(s *config.Settings, results []Result) []string {
	newest := map[string]Result{}
	for _, r := range results {
		key := strings.ToLower(r.Kind)
		if cur, ok := newest[key]; !ok || r.LastModified.After(cur.LastModified) {
			newest[key] = r
		}
	}

	var changed []string
	for i := range s.Sources {
		src := &s.Sources[i]
		r, ok := newest[strings.ToLower(src.Name)]
		if !ok || s.SourcePath(*src) == r.Path {
			continue
		}
		src.Path = r.Path
		changed = append(changed, src.Name)
	}
	return changed
}
