// cmd/backup/backup.go

package backup

import (
	"fmt"
	"text/tabwriter"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/backup"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/spf13/cobra"
)

// BackupCmd groups snapshot management of the output directory.
var BackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list and restore snapshots of the generated output",
}

var createCmd = &cobra.Command{
	Use:   "create",
	Args:  cobra.NoArgs,
	Short: "Snapshot the current output now",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, m, err := manager(rc, cmd)
		if err != nil {
			return err
		}
		snap, err := m.Create(rc.Ctx, settings.OutputRoot())
		if snap == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to back up.")
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%d files)\n", snap.Name, snap.Files)
		return err
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Args:  cobra.NoArgs,
	Short: "List snapshots, newest first",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		_, m, err := manager(rc, cmd)
		if err != nil {
			return err
		}
		snaps, err := m.List()
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No backups in", m.Dir)
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCREATED\tFILES")
		for _, s := range snaps {
			fmt.Fprintf(w, "%s\t%s\t%d\n", s.Name, s.Created.Format("2006-01-02 15:04:05"), s.Files)
		}
		return w.Flush()
	}),
}

var restoreCmd = &cobra.Command{
	Use:   "restore <name>",
	Args:  cobra.ExactArgs(1),
	Short: "Copy a snapshot back over the output directory",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, m, err := manager(rc, cmd)
		if err != nil {
			return err
		}
		n, err := m.Restore(rc.Ctx, args[0], settings.OutputRoot())
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d files from %s\n", n, args[0])
		return err
	}),
}

func manager(rc *regen_io.RuntimeContext, cmd *cobra.Command) (*config.Settings, *backup.Manager, error) {
	settings, _, err := regen_cli.LoadSettings(rc, cmd)
	if err != nil {
		return nil, nil, err
	}
	dir := settings.Backup.Dir
	if dir == "" {
		dir = config.DefaultBackupDir()
	}
	return settings, backup.NewManager(rc.Log, dir, settings.Backup.MaxBackups, settings.OutputSubdirs()), nil
}

func init() {
	BackupCmd.AddCommand(createCmd, listCmd, restoreCmd)
}
