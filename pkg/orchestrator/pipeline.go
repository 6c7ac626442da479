// pkg/orchestrator/pipeline.go

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/collector"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/git"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/locator"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/packer"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/report"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/seed"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// run is the state of one Task's worker goroutine.
type run struct {
	o       *Orchestrator
	task    *Task
	sources []config.Source
	log     *zap.Logger

	index int // source being processed
}

func (r *run) emit(source string, stage Stage, msg string) {
	n := len(r.sources)
	pct := 100
	if n > 0 {
		pct = (r.index*100 + stage.progress()) / n
	}
	if source == "" && stage == StageDone {
		pct = 100
	}
	ev := Event{RunID: r.task.ID, Source: source, Stage: stage, Percent: pct, Message: msg, Time: time.Now()}
	select {
	case r.task.events <- ev:
	default:
		r.log.Debug("Progress event dropped", zap.String("stage", stage.String()))
	}
}

func (r *run) execute(ctx context.Context) (rep report.RunReport, err error) {
	ctx, span := telemetry.Start(ctx, "orchestrator.Run",
		attribute.String("run_id", r.task.ID),
		attribute.Int("sources", len(r.sources)),
	)
	defer span.End()

	rep = report.RunReport{RunID: r.task.ID, Started: time.Now()}
	for _, src := range r.sources {
		rep.Sources = append(rep.Sources, report.SourceReport{Name: src.Name, Stage: StageIdle.String()})
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Panic during update run", zap.Any("panic", p), zap.Stack("stack"))
			err = regen_err.NewInternalError("update run panicked", fmt.Errorf("%v", p))
		}
		rep.Duration = time.Since(rep.Started)
		if err != nil {
			span.RecordError(err)
		}
	}()

	r.log.Info("Update run starting", zap.Strings("sources", namesOf(r.sources)))
	r.emit("", StageValidatingPaths, "Validating paths")
	if verr := validate(r.o.settings, r.sources); verr != nil {
		r.log.Error("Path validation failed, nothing was touched", zap.Error(verr))
		for i := range rep.Sources {
			rep.Sources[i].Status = report.StatusFailed
			rep.Sources[i].Stage = StageValidatingPaths.String()
			rep.Sources[i].Err = verr
		}
		r.emit("", StageFailed, verr.Error())
		return rep, verr
	}

	outputRoot := r.o.settings.OutputRoot()
	if r.o.snapshots != nil {
		snap, berr := r.o.snapshots.Create(ctx, outputRoot)
		if berr != nil {
			r.log.Warn("Backup incomplete, continuing", zap.Error(berr))
		}
		if snap != nil {
			rep.Backup = snap.Name
		}
	}

	var result *multierror.Error
	for i, src := range r.sources {
		r.index = i
		sr := &rep.Sources[i]
		started := time.Now()
		serr := r.source(ctx, src, sr)
		if serr != nil {
			result = multierror.Append(result, serr)
		}
		sr.Duration = time.Since(started)
		if cancelErr := ctx.Err(); cancelErr != nil {
			r.log.Warn("Update run cancelled, remaining sources skipped",
				zap.Int("skipped", len(r.sources)-i-1))
			if serr == nil {
				result = multierror.Append(result, cancelErr)
			}
			break
		}
	}
	r.index = len(r.sources)

	err = result.ErrorOrNil()
	span.SetAttributes(attribute.Int("failed", len(rep.Failed())))
	r.log.Info("Update run finished",
		zap.Int("failed", len(rep.Failed())),
		zap.Int("sources", len(rep.Sources)),
		zap.Duration("duration", time.Since(rep.Started)))
	r.emit("", StageDone, fmt.Sprintf("%d of %d sources completed", len(rep.Sources)-len(rep.Failed()), len(rep.Sources)))
	return rep, err
}

// source runs every stage for one source. Its failure never stops the run.
func (r *run) source(ctx context.Context, src config.Source, sr *report.SourceReport) (err error) {
	ctx, span := telemetry.Start(ctx, "orchestrator.Source", attribute.String("source", src.Name))
	defer span.End()
	log := r.log.With(zap.String("source", src.Name))

	stage := StageIdle
	enter := func(s Stage, msg string) {
		stage = s
		sr.Stage = s.String()
		log.Info(msg, zap.String("stage", s.String()))
		r.emit(src.Name, s, msg)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("Panic in pipeline", zap.Any("panic", p), zap.Stack("stack"))
			err = regen_err.NewInternalError("pipeline panicked", fmt.Errorf("%v", p))
		}
		if err != nil {
			err = &StageError{Source: src.Name, Stage: stage, Err: err}
			sr.Status = report.StatusFailed
			sr.Err = err
			span.RecordError(err)
			log.Error("Source failed", zap.String("stage", stage.String()), zap.Error(err))
			r.emit(src.Name, StageFailed, err.Error())
			return
		}
		sr.Status = report.StatusDone
		enter(StageDone, "Source completed")
	}()

	path := r.o.settings.SourcePath(src)

	enter(StageSyncingRepos, "Syncing repository")
	if src.Remote != "" {
		res := r.o.syncer.CloneOrUpdate(ctx, git.RepositorySource{
			Name:      src.Name,
			RemoteURL: src.Remote,
			LocalPath: path,
			Branch:    src.Branch,
		})
		if !res.Success {
			return regen_err.NewTransportError("Failed to sync "+src.Name, errors.New(res.ErrorMessage),
				"Check the remote URL and network connectivity",
				"Or set auto_manage to false and keep the checkout up to date yourself")
		}
		sr.Commit = res.ShortHash()
		sr.Updated = res.WasUpdated
	}

	var loc *locator.Locator
	if src.Tool != nil {
		ext := src.Tool.Extension
		if ext == "" {
			ext = locator.DefaultExtension()
		}
		loc = locator.New(r.o.logger, src.Tool.ProductNames, src.Tool.SearchDirs, ext)
	}

	if src.AutoManage && src.Build != nil {
		needBuild := sr.Updated
		if !needBuild && loc != nil {
			_, found := loc.Find(path)
			needBuild = !found
		}
		if needBuild {
			builder := r.o.newBuilder(r.o.settings.BuildTool, src.Build)
			if err := builder.Build(ctx, path, src.Build.Configuration); err != nil {
				return err
			}
			sr.Built = true
		} else {
			log.Info("Build skipped, repository unchanged and executable present")
		}
	}

	if src.Tool != nil {
		enter(StageRunningExternalTools, "Running external tool")
		if err := r.tool(ctx, log, src, path, loc, sr); err != nil {
			return err
		}
	}

	if src.Pack != nil || src.Collect != nil {
		enter(StagePackingArtifacts, "Packing artifacts")
	}
	if src.Pack != nil {
		if err := r.pack(ctx, src, path, sr); err != nil {
			return err
		}
	}
	if src.Collect != nil {
		if err := r.collect(ctx, src, path, sr); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) tool(ctx context.Context, log *zap.Logger, src config.Source, path string, loc *locator.Locator, sr *report.SourceReport) error {
	exe, ok := loc.Find(path)
	if !ok {
		return regen_err.NewToolError("No executable found for "+src.Name, regen_err.ErrNoExecutable,
			"Build the project once, or check tool.product_names and tool.search_dirs")
	}

	if src.Tool.SeedURL != "" {
		req := seed.Request{URL: src.Tool.SeedURL, File: src.Tool.SeedFile, ExeDir: filepath.Dir(exe)}
		if src.Tool.SeedRepoDir != "" {
			req.RepoDir = filepath.Join(path, src.Tool.SeedRepoDir)
		}
		if _, err := r.o.seeder.Download(ctx, req); err != nil {
			return err
		}
	}

	runner := r.o.newToolRunner(src.Tool, r.o.settings.ToolTimeout())
	code, err := runner.RunUpdate(ctx, exe)
	if err != nil {
		return err
	}
	sr.ToolExit = &code
	if code != 0 {
		msg := fmt.Sprintf("%s exited with code %d, continuing", filepath.Base(exe), code)
		log.Warn(msg)
		sr.Warn(msg)
	}
	return nil
}

func (r *run) pack(ctx context.Context, src config.Source, path string, sr *report.SourceReport) error {
	p := packer.FromSource(r.o.logger, src, path)
	outDir := filepath.Join(r.o.settings.OutputRoot(), src.Pack.OutputSubdir)
	for _, g := range packer.Groups(src, path) {
		results, err := p.PackGroup(ctx, g, outDir)
		sr.Packs = append(sr.Packs, results...)
		if err != nil {
			return regen_err.NewFileIOError("Failed to write pack output", err)
		}
	}
	return nil
}

func (r *run) collect(ctx context.Context, src config.Source, path string, sr *report.SourceReport) error {
	roots := []string{path}
	for _, d := range src.Collect.ExtraSearchDirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(path, d)
		}
		roots = append(roots, d)
	}
	dest := filepath.Join(r.o.settings.OutputRoot(), src.Collect.OutputSubdir)

	rep, err := collector.Collect(ctx, roots, dest, collector.Filter{
		Extension: src.Collect.Extension,
		Expected:  src.Collect.Expected,
	})
	if err != nil {
		return regen_err.NewFileIOError("Cannot use collection directory "+dest, err)
	}
	sr.Collected = rep.Copied
	sr.Missing = rep.MissingExpected
	if rep.Copied == 0 {
		sr.Warn("no artifacts collected")
	}
	if rep.Failed > 0 {
		sr.Warn(fmt.Sprintf("%d artifacts failed to copy", rep.Failed))
	}
	return nil
}

// validate checks every path the run depends on before anything mutates.
func validate(s *config.Settings, sources []config.Source) error {
	var ve ValidationErrors

	if !isDir(s.OutputRoot()) {
		ve.Add("output_path", s.OutputRoot(), "output directory does not exist")
	}
	for _, src := range sources {
		p := s.SourcePath(src)
		// auto-managed checkouts are cloned on demand
		if !src.AutoManage && !isDir(p) {
			ve.Add(src.Name+".path", p, "repository path does not exist")
		}
	}

	if !ve.HasErrors() {
		return nil
	}
	return regen_err.NewConfigError("Invalid paths, no repository was touched", &ve,
		"Run 'regen config show' to review the configured paths",
		"Use 'regen detect --apply' to find local checkouts")
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func namesOf(sources []config.Source) []string {
	names := make([]string, 0, len(sources))
	for _, s := range sources {
		names = append(names, s.Name)
	}
	return names
}
