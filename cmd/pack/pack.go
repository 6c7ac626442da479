// cmd/pack/pack.go

package pack

import (
	"fmt"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/packer"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/spf13/cobra"
)

// PackCmd rebuilds the blobs from the current checkouts.
var PackCmd = &cobra.Command{
	Use:   "pack [source...]",
	Short: "Regenerate .pkl blobs from local checkouts without syncing",
	Long: `Pack every generation group of the selected sources into
<output>/<pack.output_subdir>/<ext>.pkl using the checkouts as they are on
disk. Useful after editing override files.`,
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, _, err := regen_cli.LoadSettings(rc, cmd)
		if err != nil {
			return err
		}

		names := args
		if len(names) == 0 {
			names = settings.SourceNames()
		}

		out := cmd.OutOrStdout()
		for _, name := range names {
			src, ok := settings.Source(name)
			if !ok {
				return regen_err.NewExpectedError(fmt.Errorf("unknown source %q", name))
			}
			if src.Pack == nil {
				continue
			}
			repo := settings.SourcePath(src)
			p := packer.FromSource(rc.Log, src, repo)
			outDir := filepath.Join(settings.OutputRoot(), src.Pack.OutputSubdir)

			for _, g := range packer.Groups(src, repo) {
				results, err := p.PackGroup(rc.Ctx, g, outDir)
				if err != nil {
					return regen_err.NewFileIOError("Failed to write pack output", err)
				}
				for _, r := range results {
					fmt.Fprintf(out, "%-12s %-8s %5d files %9d bytes %s\n", g.Name, r.Extension, r.Processed, r.Bytes, r.Digest)
				}
			}
		}
		return nil
	}),
}

func init() {
	regen_cli.AddOverrideFlags(PackCmd)
}
