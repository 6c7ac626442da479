// cmd/update/update.go

package update

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/orchestrator"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// UpdateCmd runs the full pipeline.
var UpdateCmd = &cobra.Command{
	Use:   "update [source...]",
	Short: "Sync repositories, run update tools and regenerate pickles",
	Long: `Run the complete update pipeline for every configured source, or only the
named ones:

  1. Validate the repo and output paths (nothing is touched if this fails)
  2. Back up the current output
  3. Clone or update each repository, rebuilding its tool when needed
  4. Run the update tool, downloading seed data first when configured
  5. Pack event files into <output>/mgdb and collect tool output into <output>/wild

A failing source does not stop the others.

Examples:
  regen update
  regen update EventsGallery
  regen update --output-path /srv/pkhex/legality`,
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, _, err := regen_cli.LoadSettings(rc, cmd)
		if err != nil {
			return err
		}

		o := orchestrator.New(rc.Log, settings)
		task, err := o.Start(rc.Ctx, args...)
		if err != nil {
			return err
		}

		for ev := range task.Events() {
			rc.Log.Info(ev.Message,
				zap.String("source", ev.Source),
				zap.String("stage", ev.Stage.String()),
				zap.Int("percent", ev.Percent))
		}
		rep, runErr := task.Wait()

		if err := report.Write(cmd.OutOrStdout(), rep); err != nil {
			rc.Log.Warn("Failed to print run summary", zap.Error(err))
		}
		if runErr != nil {
			return runErr
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Update complete.")
		return nil
	}),
}

func init() {
	regen_cli.AddOverrideFlags(UpdateCmd)
}
