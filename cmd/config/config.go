// cmd/config/config.go

package config

import (
	"encoding/json"
	"fmt"
	"os"

	cfg "github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// ConfigCmd inspects and manages the settings file.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Create, show and validate settings",
}

var initCmd = &cobra.Command{
	Use:   "init",
	Args:  cobra.NoArgs,
	Short: "Write default settings",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		path := regen_cli.ConfigPath(cmd)
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return regen_err.NewExpectedError(cerr.Newf("%s already exists, use --force to overwrite", path))
		}
		if err := cfg.Write(path, cfg.Default()); err != nil {
			return regen_err.NewConfigError("cannot write settings", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
		return nil
	}),
}

var showCmd = &cobra.Command{
	Use:   "show",
	Args:  cobra.NoArgs,
	Short: "Print the effective settings",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, _, err := regen_cli.LoadSettings(rc, cmd)
		if err != nil {
			return err
		}
		asYAML, _ := cmd.Flags().GetBool("yaml")
		if asYAML {
			out, err := regen_io.MarshalYAML(settings)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		}
		data, err := json.MarshalIndent(settings, "", "  ")
		if err != nil {
			return cerr.Wrap(err, "marshal settings")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}),
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Args:  cobra.NoArgs,
	Short: "Check the settings file and report problems",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		settings, loader, err := regen_cli.LoadSettings(rc, cmd)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%d sources)\n", loader.Path(), len(settings.Sources))
		for _, src := range settings.Sources {
			path := settings.SourcePath(src)
			state := "present"
			if _, err := os.Stat(path); err != nil {
				state = "missing"
				if src.AutoManage {
					state = "missing, will be cloned"
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %-16s %s (%s)\n", src.Name, path, state)
		}
		if _, err := os.Stat(settings.OutputRoot()); err != nil {
			return regen_err.NewConfigError("output directory does not exist", err,
				"Create "+settings.OutputRoot()+" or fix output_path")
		}
		return nil
	}),
}

var pathCmd = &cobra.Command{
	Use:   "path",
	Args:  cobra.NoArgs,
	Short: "Print the settings file location",
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), regen_cli.ConfigPath(cmd))
		return nil
	}),
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing settings file")
	showCmd.Flags().Bool("yaml", false, "Print as YAML instead of JSON")
	regen_cli.AddOverrideFlags(showCmd)
	ConfigCmd.AddCommand(initCmd, showCmd, validateCmd, pathCmd)
}
