// pkg/build/runner.go

package build

import (
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/progress"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Runner builds a project with an external build tool such as dotnet.
type Runner struct {
	Tool             string
	PreferredProject string
	Patterns         []string
	Timeout          time.Duration
}

func NewRunner(tool string) *Runner {
	return &Runner{Tool: tool, Patterns: DefaultPatterns, Timeout: DefaultTimeout}
}

// Build resolves the project under projectPath and runs
// `<tool> build "<project>" -c <configuration>`. A nil error means the
// build succeeded.
func (r *Runner) Build(ctx context.Context, projectPath, configuration string) error {
	ctx, span := telemetry.Start(ctx, "build.Build",
		attribute.String("path", projectPath),
		attribute.String("configuration", configuration),
	)
	defer span.End()

	target, err := r.assess(ctx, projectPath, configuration)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := r.execute(ctx, target); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// assess resolves the descriptor and checks the tool is on PATH.
func (r *Runner) assess(ctx context.Context, projectPath, configuration string) (*Target, error) {
	logger := otelzap.Ctx(ctx)

	if _, err := exec.LookPath(r.Tool); err != nil {
		return nil, regen_err.NewBuildError(r.Tool+" not found in PATH", err,
			"Install the build tool or set build_tool in settings")
	}

	project, err := ResolveProject(projectPath, r.PreferredProject, r.Patterns)
	if err != nil {
		return nil, regen_err.NewBuildError("no buildable project", err)
	}
	if configuration == "" {
		configuration = "Release"
	}

	logger.Info("Resolved build target",
		zap.String("project", project),
		zap.String("configuration", configuration))
	return &Target{
		ProjectFile:   project,
		Configuration: configuration,
		WorkDir:       filepath.Dir(project),
	}, nil
}

func (r *Runner) execute(ctx context.Context, t *Target) error {
	logger := otelzap.Ctx(ctx)
	op := progress.Start(ctx, "Build "+filepath.Base(t.ProjectFile), progress.DefaultEvery)

	output, err := execute.Run(ctx, execute.Options{
		Command: r.Tool,
		Args:    []string{"build", t.ProjectFile, "-c", t.Configuration},
		Dir:     t.WorkDir,
		Timeout: r.timeout(),
		Capture: true,
		Logger:  logger.ZapLogger(),
	})
	elapsed := op.Done()
	if err != nil {
		summary := regen_err.ExtractSummary(output, 3)
		logger.Error("Build failed",
			zap.String("project", t.ProjectFile),
			zap.Int("exit_code", execute.ExitCode(err)),
			zap.String("summary", summary))
		return regen_err.NewBuildError("build failed: "+summary, regen_err.WrapWithSummary(err, output),
			"Run the build manually to see the full output: "+r.Tool+" build \""+t.ProjectFile+"\"")
	}

	logger.Info("Build completed",
		zap.String("project", t.ProjectFile),
		zap.Duration("duration", elapsed))
	return nil
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}
