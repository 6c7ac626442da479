// pkg/packer/packer.go
//
// Concatenates every file with a given extension under a directory tree into
// one flat blob. Output is rewritten from scratch on each pack, and files are
// appended in filepath.WalkDir order (lexical within each directory), so the
// same input always yields byte-identical output.

package packer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	"github.com/cespare/xxhash/v2"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BlobExt is the suffix of every packed output file.
const BlobExt = ".pkl"

const progressEvery = 100

// PackResult describes one output blob.
type PackResult struct {
	Extension string
	Output    string
	Processed int
	Skipped   int
	Bytes     int64
	Digest    string // xxhash64, hex
}

// Group is a set of extensions packed from the same input directory.
type Group struct {
	Name       string
	Input      string
	Extensions []string
}

// Packer packs input trees, applying an override table.
type Packer struct {
	overrides   OverrideTable
	overrideDir string
	logger      *zap.Logger
}

// New returns a packer. Replacement files named by overrides are read from
// overrideDir.
func New(logger *zap.Logger, overrides OverrideTable, overrideDir string) *Packer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Packer{
		overrides:   overrides,
		overrideDir: overrideDir,
		logger:      logger.Named("packer"),
	}
}

// Pack writes every "*.<ext>" file under sourceDir into outFile. A missing
// sourceDir is logged and yields an empty result without touching outFile.
// Unreadable inputs are skipped and counted; only failure to write the
// output is returned as an error.
func (p *Packer) Pack(ctx context.Context, sourceDir, ext, outFile string) (PackResult, error) {
	_, span := telemetry.Start(ctx, "packer.Pack",
		attribute.String("ext", ext),
		attribute.String("source_dir", sourceDir),
	)
	defer span.End()

	ext = strings.TrimPrefix(ext, ".")
	res := PackResult{Extension: ext, Output: outFile}
	log := p.logger.With(zap.String("ext", ext))

	if info, err := os.Stat(sourceDir); err != nil || !info.IsDir() {
		log.Warn("Input path not found, skipping", zap.String("path", sourceDir))
		return res, nil
	}

	files, err := collect(sourceDir, ext)
	if err != nil {
		return res, cerr.Wrapf(err, "enumerate %s", sourceDir)
	}

	if err := os.MkdirAll(filepath.Dir(outFile), xdg.DirPermStandard); err != nil {
		return res, cerr.Wrapf(err, "create %s", filepath.Dir(outFile))
	}
	out, err := os.OpenFile(outFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, xdg.FilePermStandard)
	if err != nil {
		return res, cerr.Wrapf(err, "open %s", outFile)
	}

	if len(files) == 0 {
		log.Warn("No files found", zap.String("path", sourceDir))
	}

	hash := xxhash.New()
	w := io.MultiWriter(out, hash)

	for _, file := range files {
		target := p.resolve(log, file)
		data, err := os.ReadFile(target)
		if err != nil {
			res.Skipped++
			log.Warn("Failed to read input, skipping", zap.String("file", filepath.Base(file)), zap.Error(err))
			continue
		}
		if _, err := w.Write(data); err != nil {
			_ = out.Close()
			return res, cerr.Wrapf(err, "write %s", outFile)
		}
		res.Processed++
		res.Bytes += int64(len(data))
		if res.Processed%progressEvery == 0 {
			log.Debug("Packing progress", zap.Int("processed", res.Processed), zap.Int("total", len(files)))
		}
	}

	if err := out.Close(); err != nil {
		return res, cerr.Wrapf(err, "close %s", outFile)
	}
	res.Digest = fmt.Sprintf("%016x", hash.Sum64())

	span.SetAttributes(
		attribute.Int("processed", res.Processed),
		attribute.Int("skipped", res.Skipped),
		attribute.Int64("bytes", res.Bytes),
	)
	log.Info("Packed",
		zap.String("output", outFile),
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int64("bytes", res.Bytes),
		zap.String("digest", res.Digest))
	return res, nil
}

// PackGroup packs each extension of g into outDir/<ext>.pkl.
func (p *Packer) PackGroup(ctx context.Context, g Group, outDir string) ([]PackResult, error) {
	p.logger.Info("Processing group", zap.String("group", g.Name), zap.String("input", g.Input))

	var results []PackResult
	for _, ext := range g.Extensions {
		ext = strings.TrimPrefix(ext, ".")
		res, err := p.Pack(ctx, g.Input, ext, filepath.Join(outDir, ext+BlobExt))
		if err != nil {
			return results, cerr.Wrapf(err, "group %s", g.Name)
		}
		results = append(results, res)
	}
	return results, nil
}

// resolve returns the override replacement for file when one is configured
// and present, else file itself.
func (p *Packer) resolve(log *zap.Logger, file string) string {
	name := filepath.Base(file)
	replacement, ok := p.overrides.Lookup(name)
	if !ok {
		return file
	}
	candidate := filepath.Join(p.overrideDir, replacement)
	if _, err := os.Stat(candidate); err != nil {
		log.Warn("Override file not found, using original",
			zap.String("file", name),
			zap.String("override", replacement))
		return file
	}
	log.Debug("Using override", zap.String("file", name), zap.String("override", replacement))
	return candidate
}

// collect lists files under root whose names end in "."+ext, ignoring case.
func collect(root, ext string) ([]string, error) {
	suffix := "." + strings.ToLower(ext)
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), suffix) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
