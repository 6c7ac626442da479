/* cmd/root.go */

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_cli"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Subcommands
	"github.com/CodeMonkeyCybersecurity/regen/cmd/backup"
	"github.com/CodeMonkeyCybersecurity/regen/cmd/config"
	"github.com/CodeMonkeyCybersecurity/regen/cmd/detect"
	"github.com/CodeMonkeyCybersecurity/regen/cmd/pack"
	"github.com/CodeMonkeyCybersecurity/regen/cmd/profile"
	synccmd "github.com/CodeMonkeyCybersecurity/regen/cmd/sync"
	"github.com/CodeMonkeyCybersecurity/regen/cmd/update"
	"github.com/CodeMonkeyCybersecurity/regen/cmd/watch"
)

// RootCmd is the base command for regen.
var RootCmd = &cobra.Command{
	Use:   "regen",
	Short: "Keep event and encounter repositories in sync and regenerate legality pickles",
	Long: `regen clones or updates a set of git repositories, builds and runs their
update tools, and packs the results into flat .pkl blobs for the consuming
application.

Settings live in $XDG_CONFIG_HOME/regen/settings.json and are created with
defaults on first run.`,
	Version:       regen_io.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		if level != "" {
			logger.SetLevel(logger.ParseLogLevel(level))
			regen_err.SetDebugMode(strings.EqualFold(level, "debug"))
		}
	},
	RunE: regen_cli.Wrap(func(rc *regen_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), "No subcommand provided. Try `regen update` or `regen help`.")
		return cmd.Help()
	}),
}

var registerOnce sync.Once

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	registerOnce.Do(registerCommands)
}

func registerCommands() {
	RootCmd.PersistentFlags().String(regen_cli.FlagConfig, "", "Settings file (default $XDG_CONFIG_HOME/regen/settings.json)")
	RootCmd.PersistentFlags().String("log-level", "", "Console log level: debug, info, warn, error (default $LOG_LEVEL)")

	for _, subCmd := range []*cobra.Command{
		update.UpdateCmd,
		synccmd.SyncCmd,
		pack.PackCmd,
		backup.BackupCmd,
		config.ConfigCmd,
		profile.ProfileCmd,
		detect.DetectCmd,
		watch.WatchCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	RegisterCommands()

	err := RootCmd.ExecuteContext(ctx)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		err = regen_err.NewUserCancelledError(strings.Join(os.Args[1:], " "))
	}
	code := regen_err.GetExitCode(err)

	switch {
	case err == nil:
	case regen_err.IsExpectedUserError(err):
		logger.L().Warn("CLI completed with user error", zap.Error(err))
		regen_err.PrintError("regen", err)
	default:
		logger.L().Error("CLI execution error", zap.Error(err), zap.Int("exit_code", code))
		regen_err.PrintError("regen", firstError(err))
	}

	if err := logger.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
	}
	return code
}

// firstError picks the blocking error out of a per-source aggregate.
func firstError(err error) error {
	var merr *multierror.Error
	if errors.As(err, &merr) && len(merr.Errors) > 0 {
		return merr.Errors[0]
	}
	return err
}
