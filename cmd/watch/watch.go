// cmd/watch/watch.go

package watch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/orchestrator"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// WatchCmd keeps running and updates on the configured interval.
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Args:  cobra.NoArgs,
	Short: "Run updates every auto_update_interval_hours until interrupted",
	Long: `Stay in the foreground and run the full update whenever
auto_update_interval_hours have passed since the last run. Edits to the
settings file are picked up without restarting. Use --now to run once
immediately.`,
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, loader, err := regen_cli.LoadSettings(rc, cmd)
		if err != nil {
			return err
		}
		if settings.AutoUpdateIntervalHours <= 0 {
			return regen_err.NewExpectedError(errors.New("auto_update_interval_hours is 0, nothing to schedule"))
		}

		var current atomic.Pointer[orchestrator.Orchestrator]
		current.Store(orchestrator.New(rc.Log, settings))
		sched := scheduler.New(settings.AutoUpdateInterval())

		loader.Watch(rc.Ctx, func(s *config.Settings, err error) {
			if err != nil {
				rc.Log.Warn("Ignoring invalid settings change", zap.Error(err))
				return
			}
			current.Store(orchestrator.New(rc.Log, s))
			sched.SetInterval(s.AutoUpdateInterval())
			rc.Log.Info("Settings reloaded", zap.Duration("interval", s.AutoUpdateInterval()))
		})

		update := func(ctx context.Context) error {
			rep, err := current.Load().Run(ctx)
			if errors.Is(err, regen_err.ErrRunInProgress) {
				rc.Log.Info("Update already running, skipped")
				return nil
			}
			rc.Log.Info("Scheduled update finished",
				zap.String("run_id", rep.RunID),
				zap.Int("failed", len(rep.Failed())))
			return err
		}

		if now, _ := cmd.Flags().GetBool("now"); now {
			if err := update(rc.Ctx); err != nil {
				rc.Log.Warn("Initial update failed", zap.Error(err))
			}
			sched.MarkRun(time.Now())
		}

		rc.Log.Info("Watching for scheduled updates",
			zap.Duration("interval", settings.AutoUpdateInterval()),
			zap.String("settings", loader.Path()))
		sched.Loop(rc.Ctx, time.Minute, update)
		return nil
	}),
}

func init() {
	WatchCmd.Flags().Bool("now", false, "Run an update immediately before waiting")
}
