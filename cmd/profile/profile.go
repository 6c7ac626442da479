// cmd/profile/profile.go

package profile

import (
	"fmt"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/spf13/cobra"
)

// ProfileCmd manages named copies of the settings.
var ProfileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Save and switch between named settings profiles",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Args:  cobra.NoArgs,
	Short: "List saved profiles",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		names, err := config.DefaultProfiles().List()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	}),
}

var saveCmd = &cobra.Command{
	Use:   "save <name>",
	Args:  cobra.ExactArgs(1),
	Short: "Save the current settings as a profile",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, _, err := regen_cli.LoadSettings(rc, cmd)
		if err != nil {
			return err
		}
		if err := config.DefaultProfiles().Save(rc.Ctx, args[0], settings); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved profile %s\n", args[0])
		return nil
	}),
}

var loadCmd = &cobra.Command{
	Use:   "load <name>",
	Args:  cobra.ExactArgs(1),
	Short: "Replace the current settings with a profile",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		s, err := config.DefaultProfiles().Load(rc.Ctx, args[0])
		if err != nil {
			return err
		}
		loader, err := regen_cli.NewLoader(cmd)
		if err != nil {
			return err
		}
		if err := loader.Save(rc.Ctx, s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Loaded profile %s into %s\n", args[0], loader.Path())
		return nil
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Args:  cobra.ExactArgs(1),
	Short: "Delete a saved profile",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		if err := config.DefaultProfiles().Delete(rc.Ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted profile %s\n", args[0])
		return nil
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export <name> <file.yaml>",
	Args:  cobra.ExactArgs(2),
	Short: "Write a profile as YAML",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		s, err := config.DefaultProfiles().Load(rc.Ctx, args[0])
		if err != nil {
			return err
		}
		out := filepath.Clean(args[1])
		if err := regen_io.WriteYAML(rc.Ctx, out, s); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", args[0], out)
		return nil
	}),
}

func init() {
	ProfileCmd.AddCommand(listCmd, saveCmd, loadCmd, deleteCmd, exportCmd)
}
