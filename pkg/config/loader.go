// pkg/config/loader.go

package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	cerr "github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const EnvPrefix = "REGEN"

// Loader reads settings through viper: file, then REGEN_* environment,
// then any bound flags.
type Loader struct {
	v    *viper.Viper
	path string

	mu      sync.Mutex
	current *Settings
}

// NewLoader returns a loader for path, or DefaultPath() when empty.
func NewLoader(path string) *Loader {
	if path == "" {
		path = DefaultPath()
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault(KeyToolTimeoutMinutes, d.ToolTimeoutMinutes)
	v.SetDefault(KeyBuildTool, d.BuildTool)
	v.SetDefault(KeyAutoUpdateInterval, d.AutoUpdateIntervalHours)
	v.SetDefault(KeyBackupMax, d.Backup.MaxBackups)
	v.SetDefault(KeyBackupDir, "")
	v.SetDefault(KeyRepoFolder, d.RepoFolder)
	v.SetDefault(KeyOutputPath, d.OutputPath)

	return &Loader{v: v, path: path}
}

// Viper exposes the underlying instance for flag binding.
func (l *Loader) Viper() *viper.Viper { return l.v }

func (l *Loader) Path() string { return l.path }

// Current returns the last successfully loaded settings, or nil.
func (l *Loader) Current() *Settings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

// Load reads and validates the settings file. A missing file is created
// with defaults; an unparseable one is moved aside to settings.json.invalid
// and replaced with defaults.
func (l *Loader) Load(ctx context.Context) (*Settings, error) {
	log := otelzap.Ctx(ctx)

	l.loadDotEnv(ctx)

	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		log.Info("Settings file not found, writing defaults", zap.String("path", l.path))
		if err := Write(l.path, Default()); err != nil {
			return nil, regen_err.NewConfigError("cannot create default settings", err)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var parseErr viper.ConfigParseError
		if !errors.As(err, &parseErr) {
			return nil, regen_err.NewConfigError("cannot read settings", err,
				"Check that "+l.path+" is readable")
		}
		invalid := l.path + ".invalid"
		log.Warn("Settings file is not valid JSON, replacing with defaults",
			zap.String("path", l.path),
			zap.String("moved_to", invalid),
			zap.Error(err))
		if err := os.Rename(l.path, invalid); err != nil {
			return nil, regen_err.NewConfigError("cannot move invalid settings aside", err)
		}
		if err := Write(l.path, Default()); err != nil {
			return nil, regen_err.NewConfigError("cannot create default settings", err)
		}
		if err := l.v.ReadInConfig(); err != nil {
			return nil, regen_err.NewConfigError("cannot read settings", err)
		}
	}

	s, err := l.decode()
	if err != nil {
		return nil, err
	}
	log.Debug("Settings loaded",
		zap.String("path", l.path),
		zap.Int("sources", len(s.Sources)))
	return s, nil
}

func (l *Loader) decode() (*Settings, error) {
	var s Settings
	if err := l.v.Unmarshal(&s); err != nil {
		return nil, regen_err.NewConfigError("cannot decode settings", err)
	}
	applyDefaults(&s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.current = &s
	l.mu.Unlock()
	return &s, nil
}

func (l *Loader) loadDotEnv(ctx context.Context) {
	envFile := filepath.Join(filepath.Dir(l.path), ".env")
	if _, err := os.Stat(envFile); err != nil {
		return
	}
	// existing environment wins over the file
	if err := godotenv.Load(envFile); err != nil {
		otelzap.Ctx(ctx).Warn("Failed to load .env", zap.String("path", envFile), zap.Error(err))
	}
}

// Save writes s to the loader's path.
func (l *Loader) Save(ctx context.Context, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if err := Write(l.path, s); err != nil {
		return err
	}
	otelzap.Ctx(ctx).Info("Settings saved", zap.String("path", l.path))
	return l.v.ReadInConfig()
}

// Watch calls fn every time the settings file changes on disk. fn
// receives either the new settings or the validation error.
func (l *Loader) Watch(ctx context.Context, fn func(*Settings, error)) {
	log := otelzap.Ctx(ctx)
	l.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Settings file changed", zap.String("path", e.Name), zap.String("op", e.Op.String()))
		fn(l.decode())
	})
	l.v.WatchConfig()
}

// Write persists s as indented JSON, creating parent directories.
func Write(path string, s *Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return cerr.Wrap(err, "failed to marshal settings")
	}
	if err := xdg.EnsureDir(path); err != nil {
		return cerr.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, append(data, '\n'), xdg.FilePermStandard); err != nil {
		return cerr.Wrapf(err, "failed to write %s", path)
	}
	return nil
}
