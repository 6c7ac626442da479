// pkg/config/types.go

package config

import (
	"path/filepath"
	"strings"
	"time"
)

// Settings keys, shared by viper defaults, env overrides and flag binding.
const (
	KeyRepoFolder         = "repo_folder"
	KeyOutputPath         = "output_path"
	KeyAutoUpdateInterval = "auto_update_interval_hours"
	KeyToolTimeoutMinutes = "tool_timeout_minutes"
	KeyBuildTool          = "build_tool"
	KeyBackupDir          = "backup.dir"
	KeyBackupMax          = "backup.max_backups"
)

const (
	DefaultToolTimeout     = 10
	DefaultMaxBackups      = 10
	DefaultAutoUpdateHours = 24
	DefaultBuildTool       = "dotnet"
	DefaultBuildConfig     = "Release"
	DefaultPackSubdir      = "mgdb"
	DefaultCollectSubdir   = "wild"
	DefaultCollectExt      = ".pkl"
	DefaultUpdateArg       = "--update"
	DefaultSeedFile        = "data.json"
)

// Settings is the persisted configuration of regen.
type Settings struct {
	RepoFolder              string         `mapstructure:"repo_folder" json:"repo_folder" yaml:"repo_folder" validate:"required"`
	OutputPath              string         `mapstructure:"output_path" json:"output_path" yaml:"output_path" validate:"required"`
	AutoUpdateIntervalHours int            `mapstructure:"auto_update_interval_hours" json:"auto_update_interval_hours" yaml:"auto_update_interval_hours" validate:"gte=0"`
	ToolTimeoutMinutes      int            `mapstructure:"tool_timeout_minutes" json:"tool_timeout_minutes" yaml:"tool_timeout_minutes" validate:"gte=1"`
	BuildTool               string         `mapstructure:"build_tool" json:"build_tool" yaml:"build_tool" validate:"required"`
	Backup                  BackupSettings `mapstructure:"backup" json:"backup" yaml:"backup"`
	Sources                 []Source       `mapstructure:"sources" json:"sources" yaml:"sources" validate:"dive"`
}

type BackupSettings struct {
	Dir        string `mapstructure:"dir" json:"dir,omitempty" yaml:"dir,omitempty"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups" yaml:"max_backups" validate:"gte=1"`
}

// Source is one repository feeding the pipeline.
type Source struct {
	Name        string     `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	Path        string     `mapstructure:"path" json:"path" yaml:"path" validate:"required"`
	Remote      string     `mapstructure:"remote" json:"remote,omitempty" yaml:"remote,omitempty"`
	Branch      string     `mapstructure:"branch" json:"branch,omitempty" yaml:"branch,omitempty"`
	AutoManage  bool       `mapstructure:"auto_manage" json:"auto_manage" yaml:"auto_manage"`
	Identifiers []string   `mapstructure:"identifiers" json:"identifiers,omitempty" yaml:"identifiers,omitempty"`
	OverrideDir string     `mapstructure:"override_dir" json:"override_dir,omitempty" yaml:"override_dir,omitempty"`
	Overrides   []Override `mapstructure:"overrides" json:"overrides,omitempty" yaml:"overrides,omitempty" validate:"dive"`

	Build   *BuildSettings   `mapstructure:"build" json:"build,omitempty" yaml:"build,omitempty"`
	Tool    *ToolSettings    `mapstructure:"tool" json:"tool,omitempty" yaml:"tool,omitempty"`
	Pack    *PackSettings    `mapstructure:"pack" json:"pack,omitempty" yaml:"pack,omitempty"`
	Collect *CollectSettings `mapstructure:"collect" json:"collect,omitempty" yaml:"collect,omitempty"`
}

// Override swaps one input file for a replacement kept under OverrideDir.
// Stored as a list because viper lower-cases map keys.
type Override struct {
	Source      string `mapstructure:"source" json:"source" yaml:"source" validate:"required"`
	Replacement string `mapstructure:"replacement" json:"replacement" yaml:"replacement" validate:"required"`
}

type BuildSettings struct {
	Configuration    string   `mapstructure:"configuration" json:"configuration" yaml:"configuration"`
	PreferredProject string   `mapstructure:"preferred_project" json:"preferred_project,omitempty" yaml:"preferred_project,omitempty"`
	Patterns         []string `mapstructure:"patterns" json:"patterns,omitempty" yaml:"patterns,omitempty"`
}

type ToolSettings struct {
	ProductNames []string `mapstructure:"product_names" json:"product_names" yaml:"product_names" validate:"min=1,dive,required"`
	Extension    string   `mapstructure:"extension" json:"extension,omitempty" yaml:"extension,omitempty"`
	SearchDirs   []string `mapstructure:"search_dirs" json:"search_dirs,omitempty" yaml:"search_dirs,omitempty"`
	Args         []string `mapstructure:"args" json:"args,omitempty" yaml:"args,omitempty"`
	SeedURL      string   `mapstructure:"seed_url" json:"seed_url,omitempty" yaml:"seed_url,omitempty" validate:"omitempty,url"`
	SeedFile     string   `mapstructure:"seed_file" json:"seed_file,omitempty" yaml:"seed_file,omitempty"`
	SeedRepoDir  string   `mapstructure:"seed_repo_dir" json:"seed_repo_dir,omitempty" yaml:"seed_repo_dir,omitempty"`
}

type PackSettings struct {
	OutputSubdir string      `mapstructure:"output_subdir" json:"output_subdir" yaml:"output_subdir"`
	Groups       []PackGroup `mapstructure:"groups" json:"groups" yaml:"groups" validate:"dive"`
}

// PackGroup is a generation group: one input directory, one blob per extension.
type PackGroup struct {
	Name       string   `mapstructure:"name" json:"name" yaml:"name" validate:"required"`
	Input      string   `mapstructure:"input" json:"input" yaml:"input" validate:"required"`
	Extensions []string `mapstructure:"extensions" json:"extensions" yaml:"extensions" validate:"min=1,dive,required"`
}

type CollectSettings struct {
	OutputSubdir    string   `mapstructure:"output_subdir" json:"output_subdir" yaml:"output_subdir"`
	Extension       string   `mapstructure:"extension" json:"extension" yaml:"extension"`
	ExtraSearchDirs []string `mapstructure:"extra_search_dirs" json:"extra_search_dirs,omitempty" yaml:"extra_search_dirs,omitempty"`
	Expected        []string `mapstructure:"expected" json:"expected,omitempty" yaml:"expected,omitempty"`
}

// resolve joins p onto base unless p is already absolute.
func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// SourcePath is the absolute checkout location of src.
func (s *Settings) SourcePath(src Source) string {
	return resolve(s.RepoFolder, src.Path)
}

// OutputRoot is the directory the consuming application reads from.
func (s *Settings) OutputRoot() string {
	return resolve(s.RepoFolder, s.OutputPath)
}

func (s *Settings) ToolTimeout() time.Duration {
	return time.Duration(s.ToolTimeoutMinutes) * time.Minute
}

func (s *Settings) AutoUpdateInterval() time.Duration {
	return time.Duration(s.AutoUpdateIntervalHours) * time.Hour
}

// Source looks a source up by name, case-insensitively.
func (s *Settings) Source(name string) (Source, bool) {
	for _, src := range s.Sources {
		if strings.EqualFold(src.Name, name) {
			return src, true
		}
	}
	return Source{}, false
}

// SourceNames returns configured source names in declaration order.
func (s *Settings) SourceNames() []string {
	names := make([]string, 0, len(s.Sources))
	for _, src := range s.Sources {
		names = append(names, src.Name)
	}
	return names
}

// OutputSubdirs lists every subdirectory of the output root regen writes to.
func (s *Settings) OutputSubdirs() []string {
	seen := map[string]bool{}
	var dirs []string
	add := func(d string) {
		if d != "" && !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	for _, src := range s.Sources {
		if src.Pack != nil {
			add(src.Pack.OutputSubdir)
		}
		if src.Collect != nil {
			add(src.Collect.OutputSubdir)
		}
	}
	return dirs
}
