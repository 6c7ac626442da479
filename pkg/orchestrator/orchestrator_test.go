package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/backup"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/git"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/report"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/seed"
	"github.com/hashicorp/go-multierror"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSyncer struct {
	mu      sync.Mutex
	results map[string]git.SyncResult
	calls   []string
}

func (f *fakeSyncer) CloneOrUpdate(_ context.Context, src git.RepositorySource) git.SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, src.Name)
	if res, ok := f.results[src.Name]; ok {
		return res
	}
	return git.SyncResult{Success: true, CommitHash: "0123456789abcdef"}
}

type fakeBuilder struct {
	calls   atomic.Int32
	onBuild func(path string)
	err     error
}

func (f *fakeBuilder) Build(_ context.Context, path, _ string) error {
	f.calls.Add(1)
	if f.onBuild != nil {
		f.onBuild(path)
	}
	return f.err
}

type fakeRunner struct {
	run func(ctx context.Context, exe string) (int, error)
}

func (f fakeRunner) RunUpdate(ctx context.Context, exe string) (int, error) {
	return f.run(ctx, exe)
}

type fakeSeeder struct {
	reqs []seed.Request
	err  error
}

func (f *fakeSeeder) Download(_ context.Context, req seed.Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return filepath.Join(req.ExeDir, req.File), f.err
}

type fixture struct {
	settings *config.Settings
	syncer   *fakeSyncer
	builder  *fakeBuilder
	seeder   *fakeSeeder
	runner   fakeRunner
}

// newFixture lays out a repo folder with a gallery source (pack) and a
// tool source (build, tool, collect) whose executable already exists.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	repos := filepath.Join(root, "repos")
	output := filepath.Join(repos, "Consumer", "legality")
	require.NoError(t, os.MkdirAll(output, 0o755))

	gallery := filepath.Join(repos, "Gallery")
	testutil.WriteFile(t, "AAAAAAAAAA", filepath.Join(gallery, "Released", "Gen 9", "a.wc9"))
	testutil.WriteFile(t, "BBBBBBBBBBBBBBBBBBBB", filepath.Join(gallery, "Released", "Gen 9", "sub", "b.wc9"))
	testutil.WriteFile(t, "bad", filepath.Join(gallery, "Released", "Gen 9", "bad.wc9"))
	testutil.WriteFile(t, "fixed", filepath.Join(gallery, "Overrides", "bad-fixed.wc9"))

	tool := filepath.Join(repos, "Tool")
	testutil.WriteFile(t, "MZ", filepath.Join(tool, "bin", "Release", "EncTool.exe"))

	s := &config.Settings{
		RepoFolder:         repos,
		OutputPath:         filepath.Join("Consumer", "legality"),
		ToolTimeoutMinutes: 1,
		BuildTool:          "dotnet",
		Backup:             config.BackupSettings{MaxBackups: 3},
		Sources: []config.Source{
			{
				Name:        "Gallery",
				Path:        "Gallery",
				Remote:      "https://example.invalid/gallery.git",
				AutoManage:  true,
				OverrideDir: "Overrides",
				Overrides:   []config.Override{{Source: "bad.wc9", Replacement: "bad-fixed.wc9"}},
				Pack: &config.PackSettings{
					OutputSubdir: "mgdb",
					Groups: []config.PackGroup{
						{Name: "Gen 9", Input: filepath.Join("Released", "Gen 9"), Extensions: []string{"wc9"}},
					},
				},
			},
			{
				Name:       "Tool",
				Path:       "Tool",
				Remote:     "https://example.invalid/tool.git",
				AutoManage: true,
				Build:      &config.BuildSettings{Configuration: "Release"},
				Tool: &config.ToolSettings{
					ProductNames: []string{"EncTool"},
					Extension:    ".exe",
					SearchDirs:   []string{filepath.Join("bin", "Release")},
					SeedURL:      "https://example.invalid/data.json",
					SeedFile:     "data.json",
					SeedRepoDir:  "Resources",
				},
				Collect: &config.CollectSettings{
					OutputSubdir: "wild",
					Extension:    ".pkl",
					Expected:     []string{"encounter_go_home.pkl", "encounter_go_lgpe.pkl"},
				},
			},
		},
	}

	return &fixture{
		settings: s,
		syncer:   &fakeSyncer{results: map[string]git.SyncResult{}},
		builder:  &fakeBuilder{},
		seeder:   &fakeSeeder{},
		runner: fakeRunner{run: func(context.Context, string) (int, error) {
			return 0, nil
		}},
	}
}

func (f *fixture) orchestrator(t *testing.T, extra ...Option) *Orchestrator {
	opts := []Option{
		WithSyncer(f.syncer),
		WithBuilderFactory(func(string, *config.BuildSettings) Builder { return f.builder }),
		WithToolRunnerFactory(func(*config.ToolSettings, time.Duration) ToolRunner { return f.runner }),
		WithSeeder(f.seeder),
		WithSnapshotter(nil),
	}
	return New(zaptest.NewLogger(t), f.settings, append(opts, extra...)...)
}

func (f *fixture) output(parts ...string) string {
	return filepath.Join(append([]string{f.settings.OutputRoot()}, parts...)...)
}

func TestRunPacksWithOverrides(t *testing.T) {
	f := newFixture(t)
	rep, err := f.orchestrator(t).Run(context.Background(), "Gallery")
	require.NoError(t, err)

	src, ok := rep.Source("Gallery")
	require.True(t, ok)
	assert.Equal(t, report.StatusDone, src.Status)
	assert.Equal(t, "0123456", src.Commit)

	blob, err := os.ReadFile(f.output("mgdb", "wc9.pkl"))
	require.NoError(t, err)
	// WalkDir order: a.wc9, bad.wc9 (overridden), sub/b.wc9
	assert.Equal(t, "AAAAAAAAAA"+"fixed"+"BBBBBBBBBBBBBBBBBBBB", string(blob))
	require.Len(t, src.Packs, 1)
	assert.Equal(t, 3, src.Packs[0].Processed)
	assert.Equal(t, []string{"Gallery"}, f.syncer.calls)
}

func TestToolNonZeroExitStillCollects(t *testing.T) {
	f := newFixture(t)
	toolRepo := f.settings.SourcePath(f.settings.Sources[1])
	f.runner = fakeRunner{run: func(_ context.Context, exe string) (int, error) {
		assert.Equal(t, filepath.Join(toolRepo, "bin", "Release", "EncTool.exe"), exe)
		testutil.WriteFile(t, "home", filepath.Join(filepath.Dir(exe), "encounter_go_home.pkl"))
		return 1, nil
	}}

	rep, err := f.orchestrator(t).Run(context.Background(), "tool")
	require.NoError(t, err)

	src, ok := rep.Source("Tool")
	require.True(t, ok)
	assert.Equal(t, report.StatusDone, src.Status)
	require.NotNil(t, src.ToolExit)
	assert.Equal(t, 1, *src.ToolExit)
	assert.Equal(t, 1, src.Collected)
	assert.Equal(t, []string{"encounter_go_lgpe.pkl"}, src.Missing)
	assert.NotEmpty(t, src.Warnings)

	got, err := os.ReadFile(f.output("wild", "encounter_go_home.pkl"))
	require.NoError(t, err)
	assert.Equal(t, "home", string(got))

	require.Len(t, f.seeder.reqs, 1)
	assert.Equal(t, filepath.Join(toolRepo, "bin", "Release"), f.seeder.reqs[0].ExeDir)
	assert.Equal(t, filepath.Join(toolRepo, "Resources"), f.seeder.reqs[0].RepoDir)
}

func TestBuildTriggers(t *testing.T) {
	tests := []struct {
		name      string
		updated   bool
		removeExe bool
		wantBuild bool
	}{
		{name: "unchanged with executable", wantBuild: false},
		{name: "updated", updated: true, wantBuild: true},
		{name: "executable missing", removeExe: true, wantBuild: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			exe := filepath.Join(f.settings.SourcePath(f.settings.Sources[1]), "bin", "Release", "EncTool.exe")
			if tt.removeExe {
				require.NoError(t, os.Remove(exe))
				f.builder.onBuild = func(string) { testutil.WriteFile(t, "MZ", exe) }
			}
			f.syncer.results["Tool"] = git.SyncResult{Success: true, WasUpdated: tt.updated, CommitHash: "feedbeef"}

			rep, err := f.orchestrator(t).Run(context.Background(), "Tool")
			require.NoError(t, err)

			src, _ := rep.Source("Tool")
			assert.Equal(t, tt.wantBuild, src.Built)
			want := int32(0)
			if tt.wantBuild {
				want = 1
			}
			assert.Equal(t, want, f.builder.calls.Load())
		})
	}
}

func TestFailureIsIsolatedPerSource(t *testing.T) {
	f := newFixture(t)
	f.syncer.results["Gallery"] = git.SyncResult{ErrorMessage: "remote hung up"}

	rep, err := f.orchestrator(t).Run(context.Background())
	require.Error(t, err)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 1)

	var se *StageError
	require.True(t, errors.As(merr.Errors[0], &se))
	assert.Equal(t, "Gallery", se.Source)
	assert.Equal(t, StageSyncingRepos, se.Stage)
	cat, ok := regen_err.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, regen_err.CategoryTransport, cat)

	gallery, _ := rep.Source("Gallery")
	assert.Equal(t, report.StatusFailed, gallery.Status)
	assert.NoFileExists(t, f.output("mgdb", "wc9.pkl"))

	tool, _ := rep.Source("Tool")
	assert.Equal(t, report.StatusDone, tool.Status)
}

func TestMissingExecutableFailsToolStage(t *testing.T) {
	f := newFixture(t)
	f.settings.Sources[1].Build = nil
	require.NoError(t, os.RemoveAll(filepath.Join(f.settings.SourcePath(f.settings.Sources[1]), "bin")))

	rep, err := f.orchestrator(t).Run(context.Background(), "Tool")
	require.Error(t, err)
	assert.True(t, errors.Is(err, regen_err.ErrNoExecutable))

	src, _ := rep.Source("Tool")
	assert.Equal(t, StageRunningExternalTools.String(), src.Stage)
	assert.Empty(t, f.seeder.reqs)
}

func TestSeedFailureFailsSource(t *testing.T) {
	f := newFixture(t)
	f.seeder.err = regen_err.NewTransportError("Failed to download seed data", errors.New("boom"))
	ran := false
	f.runner = fakeRunner{run: func(context.Context, string) (int, error) {
		ran = true
		return 0, nil
	}}

	_, err := f.orchestrator(t).Run(context.Background(), "Tool")
	require.Error(t, err)
	assert.False(t, ran)
}

func TestToolTimeoutFailsSource(t *testing.T) {
	f := newFixture(t)
	f.runner = fakeRunner{run: func(context.Context, string) (int, error) {
		return -1, regen_err.NewToolError("timed out", regen_err.ErrToolTimeout)
	}}

	rep, err := f.orchestrator(t).Run(context.Background(), "Tool")
	require.Error(t, err)
	assert.True(t, errors.Is(err, regen_err.ErrToolTimeout))
	src, _ := rep.Source("Tool")
	assert.Equal(t, report.StatusFailed, src.Status)
	assert.NoDirExists(t, f.output("wild"))
}

func TestCancelledToolStopsRun(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.runner = fakeRunner{run: func(ctx context.Context, _ string) (int, error) {
		cancel()
		return -1, ctx.Err()
	}}

	rep, err := f.orchestrator(t).Run(ctx, "Tool", "Gallery")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	tool, _ := rep.Source("Tool")
	assert.Equal(t, report.StatusFailed, tool.Status)
	assert.Equal(t, StageRunningExternalTools.String(), tool.Stage)
	assert.NoDirExists(t, f.output("wild"))

	gallery, _ := rep.Source("Gallery")
	assert.Equal(t, report.StatusPending, gallery.Status)
	assert.NotContains(t, f.syncer.calls, "Gallery")
	assert.NoDirExists(t, f.output("mgdb"))
}

func TestValidationFailsBeforeAnyMutation(t *testing.T) {
	f := newFixture(t)
	f.settings.OutputPath = "does-not-exist"

	rep, err := f.orchestrator(t).Run(context.Background())
	require.Error(t, err)

	cat, ok := regen_err.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, regen_err.CategoryConfig, cat)
	assert.Equal(t, 2, regen_err.GetExitCode(err))
	assert.Empty(t, f.syncer.calls)
	for _, src := range rep.Sources {
		assert.Equal(t, report.StatusFailed, src.Status)
		assert.Equal(t, StageValidatingPaths.String(), src.Stage)
	}
}

func TestValidationRequiresUnmanagedPaths(t *testing.T) {
	f := newFixture(t)
	f.settings.Sources[0].AutoManage = false
	f.settings.Sources[0].Remote = ""
	f.settings.Sources[0].Path = "elsewhere"

	_, err := f.orchestrator(t).Run(context.Background())
	require.Error(t, err)
	var ve *ValidationErrors
	require.True(t, errors.As(err, &ve))
	require.Len(t, ve.Errors, 1)
	assert.Equal(t, "Gallery.path", ve.Errors[0].Field)
}

func TestRunInProgress(t *testing.T) {
	f := newFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	f.runner = fakeRunner{run: func(context.Context, string) (int, error) {
		once.Do(func() { close(started) })
		<-release
		return 0, nil
	}}
	o := f.orchestrator(t)

	task, err := o.Start(context.Background(), "Tool")
	require.NoError(t, err)
	<-started

	assert.True(t, o.Running("tool"))
	_, err = o.Start(context.Background(), "Tool")
	assert.True(t, errors.Is(err, regen_err.ErrRunInProgress))

	// a run over all sources overlaps too, and must not hold Gallery afterwards
	_, err = o.Start(context.Background())
	assert.True(t, errors.Is(err, regen_err.ErrRunInProgress))
	assert.False(t, o.Running("Gallery"))

	// other targets are independent
	_, err = o.Run(context.Background(), "Gallery")
	require.NoError(t, err)

	close(release)
	_, err = task.Wait()
	require.NoError(t, err)
	assert.False(t, o.Running("Tool"))

	_, err = o.Run(context.Background(), "Tool")
	assert.NoError(t, err)
}

func TestEvents(t *testing.T) {
	f := newFixture(t)
	task, err := f.orchestrator(t).Start(context.Background())
	require.NoError(t, err)

	var events []Event
	for ev := range task.Events() {
		events = append(events, ev)
	}
	rep, err := task.Wait()
	require.NoError(t, err)
	assert.Equal(t, task.ID, rep.RunID)

	require.NotEmpty(t, events)
	assert.Equal(t, StageValidatingPaths, events[0].Stage)
	last := events[len(events)-1]
	assert.Equal(t, StageDone, last.Stage)
	assert.Empty(t, last.Source)
	assert.Equal(t, 100, last.Percent)

	var toolStages []Stage
	prev := 0
	for _, ev := range events {
		assert.Equal(t, task.ID, ev.RunID)
		assert.GreaterOrEqual(t, ev.Percent, prev)
		prev = ev.Percent
		if ev.Source == "Tool" {
			toolStages = append(toolStages, ev.Stage)
		}
	}
	assert.Equal(t, []Stage{StageSyncingRepos, StageRunningExternalTools, StagePackingArtifacts, StageDone}, toolStages)
}

func TestUnknownSourceIsUserError(t *testing.T) {
	f := newFixture(t)
	_, err := f.orchestrator(t).Start(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, regen_err.IsExpectedUserError(err))
	assert.Contains(t, err.Error(), "Gallery, Tool")
}

type failingSnapshots struct{ calls int }

func (f *failingSnapshots) Create(context.Context, string) (*backup.Snapshot, error) {
	f.calls++
	return nil, errors.New("disk full")
}

func TestBackupFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	snaps := &failingSnapshots{}

	rep, err := f.orchestrator(t, WithSnapshotter(snaps)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snaps.calls)
	assert.Empty(t, rep.Backup)
	assert.True(t, rep.OK())
}

func TestBackupTakenBeforePacking(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, "previous", f.output("mgdb", "wc9.pkl"))
	f.settings.Backup.Dir = filepath.Join(t.TempDir(), "backups")

	o := New(zaptest.NewLogger(t), f.settings,
		WithSyncer(f.syncer),
		WithToolRunnerFactory(func(*config.ToolSettings, time.Duration) ToolRunner { return f.runner }),
		WithBuilderFactory(func(string, *config.BuildSettings) Builder { return f.builder }),
		WithSeeder(f.seeder),
	)
	rep, err := o.Run(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, rep.Backup)

	saved, err := os.ReadFile(filepath.Join(f.settings.Backup.Dir, rep.Backup, "mgdb", "wc9.pkl"))
	require.NoError(t, err)
	assert.Equal(t, "previous", string(saved))
}
