// pkg/regen_cli/cli.go

package regen_cli

import (
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKey maps a flag name onto its settings key: "output-path" -> "output_path".
func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// BindFlagsToViper binds the command's flags that are also settings keys
// onto v, so explicitly set flags take precedence over the file.
func BindFlagsToViper(cmd *cobra.Command, v *viper.Viper, keys ...string) error {
	allowed := make(map[string]bool, len(keys))
	for _, k := range keys {
		allowed[k] = true
	}

	var result error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key := flagKey(f.Name)
		if len(allowed) > 0 && !allowed[key] {
			return
		}
		if err := v.BindPFlag(key, f); err != nil {
			result = multierror.Append(result, err)
		}
	})
	return result
}

// SetViperEnvPrefix lets viper read PREFIX_KEY environment variables.
func SetViperEnvPrefix(v *viper.Viper, prefix string) {
	v.SetEnvPrefix(prefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
}

