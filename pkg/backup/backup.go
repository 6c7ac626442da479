// pkg/backup/backup.go
//
// Snapshots of the generated output directories, taken before each run so a
// run interrupted half way through can be rolled back by hand.

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

const (
	namePrefix = "backup_"
	timeLayout = "20060102_150405"

	DefaultMaxBackups = 10
	DefaultExtension  = ".pkl"
)

// Snapshot is one backup directory.
type Snapshot struct {
	Name    string
	Path    string
	Created time.Time
	Files   int
}

// Manager creates, lists, prunes and restores snapshots under Dir.
type Manager struct {
	Dir        string
	MaxBackups int
	Subdirs    []string
	Extension  string

	logger *zap.Logger
	now    func() time.Time
}

func NewManager(logger *zap.Logger, dir string, maxBackups int, subdirs []string) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBackups <= 0 {
		maxBackups = DefaultMaxBackups
	}
	return &Manager{
		Dir:        dir,
		MaxBackups: maxBackups,
		Subdirs:    subdirs,
		Extension:  DefaultExtension,
		logger:     logger.Named("backup"),
		now:        time.Now,
	}
}

// Create copies <outputRoot>/<subdir>/*<ext> for every subdir into a new
// snapshot, then prunes old ones. Nothing is kept when there was nothing
// to copy, in which case the returned snapshot is nil.
func (m *Manager) Create(ctx context.Context, outputRoot string) (*Snapshot, error) {
	name, dir, err := m.reserve()
	if err != nil {
		return nil, err
	}
	log := m.logger.With(zap.String("snapshot", name))

	var result error
	copied := 0
	for _, sub := range m.Subdirs {
		n, err := m.copyMatching(filepath.Join(outputRoot, sub), filepath.Join(dir, sub))
		copied += n
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	if copied == 0 {
		_ = os.RemoveAll(dir)
		log.Info("Nothing to back up", zap.String("output_root", outputRoot))
		return nil, result
	}

	log.Info("Backup created", zap.String("path", dir), zap.Int("files", copied))
	if err := m.prune(); err != nil {
		log.Warn("Failed to prune old backups", zap.Error(err))
	}

	created, _ := time.ParseInLocation(timeLayout, strings.TrimPrefix(name, namePrefix)[:len(timeLayout)], time.Local)
	return &Snapshot{Name: name, Path: dir, Created: created, Files: copied}, result
}

// reserve picks a fresh snapshot name, suffixing _2, _3... on collision.
func (m *Manager) reserve() (string, string, error) {
	if err := os.MkdirAll(m.Dir, xdg.DirPermStandard); err != nil {
		return "", "", cerr.Wrapf(err, "create backup dir %s", m.Dir)
	}
	base := namePrefix + m.now().Format(timeLayout)
	for i := 1; i < 1000; i++ {
		name := base
		if i > 1 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		dir := filepath.Join(m.Dir, name)
		err := os.Mkdir(dir, xdg.DirPermStandard)
		if err == nil {
			return name, dir, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return "", "", cerr.Wrapf(err, "create %s", dir)
		}
	}
	return "", "", cerr.Newf("too many backups named %s", base)
}

// List returns snapshots newest first.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, cerr.Wrapf(err, "read %s", m.Dir)
	}

	var out []Snapshot
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), namePrefix) {
			continue
		}
		s := Snapshot{Name: e.Name(), Path: filepath.Join(m.Dir, e.Name())}
		stamp := strings.TrimPrefix(e.Name(), namePrefix)
		if len(stamp) >= len(timeLayout) {
			if t, err := time.ParseInLocation(timeLayout, stamp[:len(timeLayout)], time.Local); err == nil {
				s.Created = t
			}
		}
		if s.Created.IsZero() {
			if info, err := e.Info(); err == nil {
				s.Created = info.ModTime()
			}
		}
		s.Files = countFiles(s.Path)
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Restore copies every file of snapshot name back under outputRoot and
// returns how many were restored.
func (m *Manager) Restore(ctx context.Context, name, outputRoot string) (int, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return 0, regen_err.NewExpectedError(cerr.Newf("invalid backup name %q", name))
	}
	dir := filepath.Join(m.Dir, name)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return 0, regen_err.NewExpectedError(cerr.Newf("backup %q not found in %s", name, m.Dir))
	}

	subs, err := os.ReadDir(dir)
	if err != nil {
		return 0, cerr.Wrapf(err, "read %s", dir)
	}

	var result error
	restored := 0
	for _, sub := range subs {
		if !sub.IsDir() {
			continue
		}
		n, err := m.copyMatching(filepath.Join(dir, sub.Name()), filepath.Join(outputRoot, sub.Name()))
		restored += n
		if err != nil {
			result = multierror.Append(result, err)
		}
	}

	m.logger.Info("Backup restored",
		zap.String("snapshot", name),
		zap.String("output_root", outputRoot),
		zap.Int("files", restored))
	return restored, result
}

func (m *Manager) prune() error {
	snaps, err := m.List()
	if err != nil {
		return err
	}
	var result error
	for i := m.MaxBackups; i < len(snaps); i++ {
		if err := os.RemoveAll(snaps[i].Path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		m.logger.Debug("Pruned backup", zap.String("snapshot", snaps[i].Name))
	}
	return result
}

// copyMatching copies top-level files of src with the manager's extension
// into dst. A missing src copies nothing.
func (m *Manager) copyMatching(src, dst string) (int, error) {
	entries, err := os.ReadDir(src)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, cerr.Wrapf(err, "read %s", src)
	}

	var result error
	n := 0
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), m.Extension) {
			continue
		}
		if n == 0 {
			if err := os.MkdirAll(dst, xdg.DirPermStandard); err != nil {
				return 0, cerr.Wrapf(err, "create %s", dst)
			}
		}
		if err := regen_io.CopyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			result = multierror.Append(result, regen_err.NewFileIOError("copy "+e.Name(), err))
			continue
		}
		n++
	}
	return n, result
}


func countFiles(dir string) int {
	n := 0
	_ = filepath.WalkDir(dir, func(_ string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return nil
	})
	return n
}
