// pkg/orchestrator/orchestrator.go
//
// Runs the update pipeline: validate paths, snapshot outputs, then sync,
// build, run tools and pack each configured source in turn on a single
// background worker.

package orchestrator

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/backup"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/build"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/git"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/invoker"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/report"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/seed"
	cerr "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const eventBuffer = 128

// Syncer brings a checkout up to date.
type Syncer interface {
	CloneOrUpdate(ctx context.Context, src git.RepositorySource) git.SyncResult
}

// Builder compiles the project found under a path.
type Builder interface {
	Build(ctx context.Context, projectPath, configuration string) error
}

// ToolRunner runs an update executable and reports its exit code.
type ToolRunner interface {
	RunUpdate(ctx context.Context, exe string) (int, error)
}

// Seeder downloads seed data next to an executable.
type Seeder interface {
	Download(ctx context.Context, req seed.Request) (string, error)
}

// Snapshotter backs up the output tree before it is rewritten.
type Snapshotter interface {
	Create(ctx context.Context, outputRoot string) (*backup.Snapshot, error)
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithSyncer(s Syncer) Option { return func(o *Orchestrator) { o.syncer = s } }

func WithBuilderFactory(f func(tool string, b *config.BuildSettings) Builder) Option {
	return func(o *Orchestrator) { o.newBuilder = f }
}

func WithToolRunnerFactory(f func(t *config.ToolSettings, timeout time.Duration) ToolRunner) Option {
	return func(o *Orchestrator) { o.newToolRunner = f }
}

func WithSeeder(s Seeder) Option { return func(o *Orchestrator) { o.seeder = s } }

// WithSnapshotter replaces the backup manager; nil disables backups.
func WithSnapshotter(s Snapshotter) Option { return func(o *Orchestrator) { o.snapshots = s } }

// Orchestrator owns the per-source run state. It is safe for concurrent use.
type Orchestrator struct {
	settings *config.Settings
	logger   *zap.Logger

	syncer        Syncer
	newBuilder    func(tool string, b *config.BuildSettings) Builder
	newToolRunner func(t *config.ToolSettings, timeout time.Duration) ToolRunner
	seeder        Seeder
	snapshots     Snapshotter

	mu     sync.Mutex
	tokens map[string]*atomic.Int32
}

// New wires the real git, build, invoker, seed and backup implementations
// unless replaced by opts.
func New(logger *zap.Logger, settings *config.Settings, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		settings: settings,
		logger:   logger.Named("orchestrator"),
		tokens:   map[string]*atomic.Int32{},
		syncer:   git.NewSyncer(),
		newBuilder: func(tool string, b *config.BuildSettings) Builder {
			r := build.NewRunner(tool)
			r.PreferredProject = b.PreferredProject
			if len(b.Patterns) > 0 {
				r.Patterns = b.Patterns
			}
			return r
		},
		newToolRunner: func(t *config.ToolSettings, timeout time.Duration) ToolRunner {
			return invoker.New(logger, t.Args, timeout)
		},
	}

	backupDir := settings.Backup.Dir
	if backupDir == "" {
		backupDir = config.DefaultBackupDir()
	}
	o.snapshots = backup.NewManager(logger, backupDir, settings.Backup.MaxBackups, settings.OutputSubdirs())

	for _, opt := range opts {
		opt(o)
	}
	if o.seeder == nil {
		// built lazily so that a broken CA file only fails runs that download
		o.seeder = lazySeeder{logger: logger}
	}
	return o
}

type lazySeeder struct{ logger *zap.Logger }

func (l lazySeeder) Download(ctx context.Context, req seed.Request) (string, error) {
	d, err := seed.New(l.logger, nil)
	if err != nil {
		return "", regen_err.NewConfigError("Cannot build HTTP client for seed download", err,
			"Check the REGEN_CA_CERT environment variable")
	}
	return d.Download(ctx, req)
}

// token returns the state token for a source, creating it on first use.
func (o *Orchestrator) token(name string) *atomic.Int32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := strings.ToLower(name)
	t, ok := o.tokens[key]
	if !ok {
		t = &atomic.Int32{}
		o.tokens[key] = t
	}
	return t
}

// Running reports whether a run currently holds the named source.
func (o *Orchestrator) Running(name string) bool {
	return o.token(name).Load() == tokenRunning
}

// claim moves every token from Idle to Running, or none of them.
func (o *Orchestrator) claim(sources []config.Source) ([]*atomic.Int32, error) {
	var held []*atomic.Int32
	for _, src := range sources {
		t := o.token(src.Name)
		if !t.CompareAndSwap(tokenIdle, tokenRunning) {
			release(held)
			return nil, cerr.Wrapf(regen_err.ErrRunInProgress, "source %s", src.Name)
		}
		held = append(held, t)
	}
	return held, nil
}

func release(tokens []*atomic.Int32) {
	for _, t := range tokens {
		t.Store(tokenIdle)
	}
}

// selectSources resolves names to configured sources; no names means all.
func (o *Orchestrator) selectSources(names []string) ([]config.Source, error) {
	if len(names) == 0 {
		return append([]config.Source(nil), o.settings.Sources...), nil
	}
	var out []config.Source
	seen := map[string]bool{}
	for _, n := range names {
		src, ok := o.settings.Source(n)
		if !ok {
			return nil, regen_err.NewExpectedError(cerr.Newf("unknown source %q (configured: %s)",
				n, strings.Join(o.settings.SourceNames(), ", ")))
		}
		if key := strings.ToLower(src.Name); !seen[key] {
			seen[key] = true
			out = append(out, src)
		}
	}
	return out, nil
}

// Task is a run in progress.
type Task struct {
	ID     string
	events chan Event
	done   chan struct{}
	report report.RunReport
	err    error
}

// Events yields progress until the run finishes, then is closed. Events
// are dropped rather than stalling the run when nobody reads them.
func (t *Task) Events() <-chan Event {
	return t.events
}

// Done is closed when the run has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the run finishes. The error aggregates every failed
// source and is nil when all succeeded.
func (t *Task) Wait() (report.RunReport, error) {
	<-t.done
	return t.report, t.err
}

// Start claims the named sources (all when none are given) and runs the
// pipeline for them on a new goroutine. It fails with ErrRunInProgress if
// any of them is already being updated.
func (o *Orchestrator) Start(ctx context.Context, names ...string) (*Task, error) {
	sources, err := o.selectSources(names)
	if err != nil {
		return nil, err
	}
	held, err := o.claim(sources)
	if err != nil {
		return nil, err
	}

	t := &Task{
		ID:     uuid.NewString(),
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		defer close(t.events)
		defer release(held)
		r := &run{o: o, task: t, sources: sources, log: o.logger.With(zap.String("run_id", t.ID))}
		t.report, t.err = r.execute(ctx)
	}()
	return t, nil
}

// Run is the synchronous form of Start.
func (o *Orchestrator) Run(ctx context.Context, names ...string) (report.RunReport, error) {
	t, err := o.Start(ctx, names...)
	if err != nil {
		return report.RunReport{}, err
	}
	go func() {
		for range t.Events() {
		}
	}()
	return t.Wait()
}
