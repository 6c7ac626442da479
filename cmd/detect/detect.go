// cmd/detect/detect.go

package detect

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/detect"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// DetectCmd looks for existing checkouts of the configured sources.
var DetectCmd = &cobra.Command{
	Use:   "detect [dir...]",
	Short: "Find local checkouts of the configured sources",
	Long: `Scan common source directories (or the given ones) up to three levels deep
for git repositories that look like one of the configured sources. A source is
recognised when at least half of its identifier paths exist.

With --apply, each source is pointed at the most recently committed match and
the settings are saved.`,
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, loader, err := regen_cli.LoadSettings(rc, cmd)
		if err != nil {
			return err
		}
		kinds := detect.KindsFromSettings(settings)
		if len(kinds) == 0 {
			return regen_err.NewExpectedError(cerr.New("no source declares identifiers to detect"))
		}

		scanner := detect.New(rc.Log, kinds, args)
		if depth, _ := cmd.Flags().GetInt("depth"); depth > 0 {
			scanner.MaxDepth = depth
		}
		results, err := scanner.Scan(rc.Ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintf(out, "No repositories found under %s\n", strings.Join(scanner.Roots, ", "))
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(out, "%-16s %s (last commit %s)\n", r.Kind, r.Path, r.LastModified.Format("2006-01-02"))
		}

		if apply, _ := cmd.Flags().GetBool("apply"); !apply {
			return nil
		}
		changed := detect.Apply(settings, results)
		if len(changed) == 0 {
			fmt.Fprintln(out, "Settings already point at the detected repositories.")
			return nil
		}
		if err := loader.Save(rc.Ctx, settings); err != nil {
			return err
		}
		fmt.Fprintf(out, "Updated paths for %s\n", strings.Join(changed, ", "))
		return nil
	}),
}

func init() {
	DetectCmd.Flags().Bool("apply", false, "Save the detected paths into the settings")
	DetectCmd.Flags().Int("depth", detect.DefaultMaxDepth, "Maximum directory depth to search")
}
