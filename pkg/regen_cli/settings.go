// pkg/regen_cli/settings.go

package regen_cli

import (
	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_io"
	"github.com/spf13/cobra"
)

// FlagConfig is the persistent flag naming the settings file.
const FlagConfig = "config"

// overridable are the settings keys a command flag may override.
var overridable = []string{
	config.KeyRepoFolder,
	config.KeyOutputPath,
	config.KeyToolTimeoutMinutes,
	config.KeyBuildTool,
	config.KeyAutoUpdateInterval,
}

// ConfigPath returns --config, or the default settings path.
func ConfigPath(cmd *cobra.Command) string {
	if p, err := cmd.Flags().GetString(FlagConfig); err == nil && p != "" {
		return p
	}
	return config.DefaultPath()
}

// NewLoader returns a settings loader with the command's override flags bound.
func NewLoader(cmd *cobra.Command) (*config.Loader, error) {
	l := config.NewLoader(ConfigPath(cmd))
	if err := BindFlagsToViper(cmd, l.Viper(), overridable...); err != nil {
		return nil, err
	}
	return l, nil
}

// LoadSettings loads and validates settings for a command.
func LoadSettings(rc *regen_io.RuntimeContext, cmd *cobra.Command) (*config.Settings, *config.Loader, error) {
	l, err := NewLoader(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := l.Load(rc.Ctx)
	if err != nil {
		return nil, nil, err
	}
	return s, l, nil
}

// AddOverrideFlags registers the flags that override settings keys.
func AddOverrideFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("repo-folder", "", "Directory holding the source checkouts")
	f.String("output-path", "", "Output directory, relative to the repo folder unless absolute")
	f.Int("tool-timeout-minutes", 0, "Timeout for the external update tool")
	f.String("build-tool", "", "Build tool used for auto-managed sources")
}
