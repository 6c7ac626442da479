// pkg/config/defaults.go

package config

import (
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
)

const (
	eventsGalleryRemote = "https://github.com/projectpokemon/EventsGallery.git"
	encToolRemote       = "https://github.com/projectpokemon/PoGoEncTool.git"
	encToolSeedURL      = "https://raw.githubusercontent.com/projectpokemon/PoGoEncTool/refs/heads/main/Resources/data.json"
)

// DefaultPath is $XDG_CONFIG_HOME/regen/settings.json.
func DefaultPath() string {
	return xdg.XDGConfigPath(xdg.AppID, "settings.json")
}

// DefaultBackupDir is used when backup.dir is empty.
func DefaultBackupDir() string {
	return xdg.XDGDataPath(xdg.AppID, "backups")
}

func defaultRepoFolder() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, "source", "repos")
}

// Default returns the settings written on first run: the event gallery
// packed into mgdb and the encounter tool's output collected into wild.
func Default() *Settings {
	released := func(parts ...string) string {
		return filepath.Join(append([]string{"Released"}, parts...)...)
	}

	return &Settings{
		RepoFolder:              defaultRepoFolder(),
		OutputPath:              filepath.Join("PKHeX", "PKHeX.Core", "Resources", "legality"),
		AutoUpdateIntervalHours: DefaultAutoUpdateHours,
		ToolTimeoutMinutes:      DefaultToolTimeout,
		BuildTool:               DefaultBuildTool,
		Backup:                  BackupSettings{MaxBackups: DefaultMaxBackups},
		Sources: []Source{
			{
				Name:        "EventsGallery",
				Path:        "EventsGallery",
				Remote:      eventsGalleryRemote,
				Branch:      "master",
				AutoManage:  true,
				Identifiers: []string{"Released/Gen 9", "Released/Gen 8", "Released/Gen 7", "Released/Gen 6"},
				OverrideDir: "PKHeX Legality",
				Overrides: []Override{
					{
						Source:      "1053 XYORAS - 데세르시티 Arceus (KOR).wc6",
						Replacement: "1053 XYORAS - 데세르시티 Arceus (KOR) - Form Fix.wc6",
					},
					{
						Source:      "0146 SWSH - サトシ Dracovish.wc8",
						Replacement: "0146 SWSH - サトシ Dracovish - Gender Fix.wc8",
					},
				},
				Pack: &PackSettings{
					OutputSubdir: DefaultPackSubdir,
					Groups: []PackGroup{
						{Name: "Gen 4", Input: released("Gen 4", "Wondercards"), Extensions: []string{"wc4"}},
						{Name: "Gen 5", Input: released("Gen 5"), Extensions: []string{"pgf"}},
						{Name: "Gen 6", Input: released("Gen 6"), Extensions: []string{"wc6", "wc6full"}},
						{Name: "Gen 7 (3DS)", Input: released("Gen 7", "3DS", "Wondercards"), Extensions: []string{"wc7", "wc7full"}},
						{Name: "Gen 7 (Switch)", Input: released("Gen 7", "Switch", "Wondercards"), Extensions: []string{"wb7full"}},
						{Name: "Gen 8", Input: released("Gen 8"), Extensions: []string{"wc8", "wb8", "wa8"}},
						{Name: "Gen 9", Input: released("Gen 9"), Extensions: []string{"wc9"}},
					},
				},
			},
			{
				Name:        "PoGoEncTool",
				Path:        "PoGoEncTool",
				Remote:      encToolRemote,
				Branch:      "main",
				AutoManage:  true,
				Identifiers: []string{"PoGoEncTool.WinForms", "PoGoEncTool.Core", "pget.sln", "PoGoEncounterTool.sln"},
				Build: &BuildSettings{
					Configuration:    DefaultBuildConfig,
					PreferredProject: "PoGoEncTool.WinForms",
					Patterns:         []string{"*.sln", "*.csproj"},
				},
				Tool: &ToolSettings{
					ProductNames: []string{"PoGoEncTool", "pget"},
					Args:         []string{DefaultUpdateArg},
					SeedURL:      encToolSeedURL,
					SeedFile:     DefaultSeedFile,
					SeedRepoDir:  "Resources",
				},
				Collect: &CollectSettings{
					OutputSubdir: DefaultCollectSubdir,
					Extension:    DefaultCollectExt,
					Expected:     []string{"encounter_go_home.pkl", "encounter_go_lgpe.pkl"},
				},
			},
		},
	}
}

// applyDefaults fills zero values that a hand-edited file may omit.
func applyDefaults(s *Settings) {
	if s.ToolTimeoutMinutes == 0 {
		s.ToolTimeoutMinutes = DefaultToolTimeout
	}
	if s.BuildTool == "" {
		s.BuildTool = DefaultBuildTool
	}
	if s.Backup.MaxBackups == 0 {
		s.Backup.MaxBackups = DefaultMaxBackups
	}
	for i := range s.Sources {
		src := &s.Sources[i]
		if src.Build != nil {
			if src.Build.Configuration == "" {
				src.Build.Configuration = DefaultBuildConfig
			}
			if len(src.Build.Patterns) == 0 {
				src.Build.Patterns = []string{"*.sln", "*.csproj"}
			}
		}
		if src.Tool != nil {
			if len(src.Tool.Args) == 0 {
				src.Tool.Args = []string{DefaultUpdateArg}
			}
			if src.Tool.SeedURL != "" && src.Tool.SeedFile == "" {
				src.Tool.SeedFile = DefaultSeedFile
			}
		}
		if src.Pack != nil && src.Pack.OutputSubdir == "" {
			src.Pack.OutputSubdir = DefaultPackSubdir
		}
		if src.Collect != nil {
			if src.Collect.OutputSubdir == "" {
				src.Collect.OutputSubdir = DefaultCollectSubdir
			}
			if src.Collect.Extension == "" {
				src.Collect.Extension = DefaultCollectExt
			}
		}
	}
}
