// cmd/sync/sync.go

package sync

import (
	"errors"
	"fmt"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/git"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// SyncCmd clones or updates repositories without running tools or packing.
var SyncCmd = &cobra.Command{
	Use:   "sync [source...]",
	Short: "Clone or update source repositories only",
	Long: `Bring each auto-managed source checkout to the tip of its remote branch.
Local changes are discarded. Nothing is built, run or packed.

Use --status to print the state of each checkout instead.`,
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, _, err := regen_cli.LoadSettings(rc, cmd)
		if err != nil {
			return err
		}
		statusOnly, _ := cmd.Flags().GetBool("status")

		names := args
		if len(names) == 0 {
			names = settings.SourceNames()
		}

		syncer := git.NewSyncer()
		out := cmd.OutOrStdout()
		var result error
		for _, name := range names {
			src, ok := settings.Source(name)
			if !ok {
				return regen_err.NewExpectedError(fmt.Errorf("unknown source %q", name))
			}
			path := settings.SourcePath(src)

			if statusOnly {
				st, err := git.Inspect(path, true)
				if err != nil {
					fmt.Fprintf(out, "%-16s not a repository (%s)\n", src.Name, path)
					continue
				}
				dirty := ""
				if st.HasChanges {
					dirty = ", local changes"
				}
				fmt.Fprintf(out, "%-16s %s %.7s %s%s\n", src.Name, st.Branch, st.CurrentCommit,
					st.LastCommit.Format("2006-01-02"), dirty)
				continue
			}

			if src.Remote == "" || !src.AutoManage {
				rc.Log.Info("Skipping source without auto-managed remote", zap.String("source", src.Name))
				continue
			}
			res := syncer.CloneOrUpdate(rc.Ctx, git.RepositorySource{
				Name: src.Name, RemoteURL: src.Remote, LocalPath: path, Branch: src.Branch,
			})
			if !res.Success {
				fmt.Fprintf(out, "%-16s failed: %s\n", src.Name, res.ErrorMessage)
				result = multierror.Append(result, regen_err.NewTransportError(
					"Failed to sync "+src.Name, errors.New(res.ErrorMessage)))
				continue
			}
			state := "up to date"
			if res.WasUpdated {
				state = "updated"
			}
			fmt.Fprintf(out, "%-16s %s at %s %s\n", src.Name, state, res.ShortHash(), res.CommitMessage)
		}
		return result
	}),
}

func init() {
	SyncCmd.Flags().Bool("status", false, "Show checkout state without syncing")
}
