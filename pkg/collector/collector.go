// pkg/collector/collector.go

package collector

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// listingLimit caps the diagnostic directory listing on zero matches.
const listingLimit = 20

// Filter selects which artifacts to collect.
type Filter struct {
	Extension string   // ".pkl" or "pkl"
	Expected  []string // base names we expect to see, for diagnostics only
}

// Report summarises a Collect call.
type Report struct {
	Copied          int
	Failed          int
	Files           []string // destination paths written
	FoundExpected   []string
	MissingExpected []string
}

// Collect copies every file with the filter's extension found under roots
// into dest. Paths containing "backup" are skipped and a file reachable from
// more than one root is copied once. Per-file errors are counted, never
// returned; only an unusable dest is an error.
func Collect(ctx context.Context, roots []string, dest string, f Filter) (Report, error) {
	ctx, span := telemetry.Start(ctx, "collector.Collect", attribute.String("dest", dest))
	defer span.End()
	log := otelzap.Ctx(ctx)

	var rep Report
	if err := os.MkdirAll(dest, xdg.DirPermStandard); err != nil {
		return rep, cerr.Wrapf(err, "create %s", dest)
	}

	files := find(ctx, roots, dotted(f.Extension))
	log.Info("Artifacts found", zap.Int("count", len(files)), zap.Strings("roots", roots))

	if len(files) == 0 {
		log.Error("No artifacts found",
			zap.String("extension", f.Extension),
			zap.Strings("roots", roots))
		if len(roots) > 0 {
			logListing(ctx, roots[0])
		}
		rep.MissingExpected = append(rep.MissingExpected, f.Expected...)
		return rep, nil
	}

	for _, src := range files {
		target := filepath.Join(dest, filepath.Base(src))
		if absTarget, err := filepath.Abs(target); err == nil && absTarget == src {
			rep.Copied++
			rep.Files = append(rep.Files, target)
			continue
		}
		if err := regen_io.CopyFile(src, target); err != nil {
			rep.Failed++
			log.Warn("Failed to copy artifact", zap.String("file", src), zap.Error(err))
			continue
		}
		rep.Copied++
		rep.Files = append(rep.Files, target)
		log.Debug("Copied artifact", zap.String("file", filepath.Base(src)))
	}

	present := map[string]bool{}
	for _, p := range rep.Files {
		present[strings.ToLower(filepath.Base(p))] = true
	}
	for _, name := range f.Expected {
		if present[strings.ToLower(name)] {
			rep.FoundExpected = append(rep.FoundExpected, name)
		} else {
			rep.MissingExpected = append(rep.MissingExpected, name)
		}
	}
	if len(rep.MissingExpected) > 0 {
		log.Warn("Expected artifacts missing", zap.Strings("missing", rep.MissingExpected))
	}

	span.SetAttributes(attribute.Int("copied", rep.Copied), attribute.Int("failed", rep.Failed))
	log.Info("Artifacts collected",
		zap.Int("copied", rep.Copied),
		zap.Int("failed", rep.Failed),
		zap.String("dest", dest))
	return rep, nil
}

// find walks every existing root and returns unique absolute paths in
// lexical order.
func find(ctx context.Context, roots []string, ext string) []string {
	log := otelzap.Ctx(ctx)
	seen := map[string]bool{}
	var out []string

	for _, root := range roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			log.Debug("Skipping missing search root", zap.String("root", root))
			continue
		}
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Debug("Unreadable path during search", zap.String("path", p), zap.Error(err))
				return nil
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr == nil && strings.Contains(strings.ToLower(rel), "backup") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ext) {
				return nil
			}
			abs, err := filepath.Abs(p)
			if err != nil {
				abs = p
			}
			if !seen[abs] {
				seen[abs] = true
				out = append(out, abs)
			}
			return nil
		})
	}
	sort.Strings(out)
	return out
}

// dotted accepts "pkl" and ".pkl" alike.
func dotted(ext string) string {
	if ext == "" {
		return ""
	}
	return "." + strings.TrimPrefix(ext, ".")
}

func logListing(ctx context.Context, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	names := make([]string, 0, listingLimit)
	for i, e := range entries {
		if i == listingLimit {
			break
		}
		names = append(names, e.Name())
	}
	otelzap.Ctx(ctx).Info("Contents of search root",
		zap.String("dir", dir),
		zap.Int("entries", len(entries)),
		zap.Strings("first", names))
}

