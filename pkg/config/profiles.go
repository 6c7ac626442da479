// pkg/config/profiles.go

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	cerr "github.com/cockroachdb/errors"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const profileExt = ".json"

// Profiles stores named copies of Settings as JSON files in Dir.
type Profiles struct {
	Dir string
}

// DefaultProfiles uses $XDG_CONFIG_HOME/regen/profiles.
func DefaultProfiles() *Profiles {
	return &Profiles{Dir: xdg.XDGConfigPath(xdg.AppID, "profiles")}
}

func (p *Profiles) path(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", regen_err.NewExpectedError(cerr.Newf("invalid profile name %q", name))
	}
	return filepath.Join(p.Dir, name+profileExt), nil
}

// List returns profile names sorted alphabetically.
func (p *Profiles) List() ([]string, error) {
	entries, err := os.ReadDir(p.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, cerr.Wrapf(err, "failed to read %s", p.Dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), profileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), profileExt))
	}
	sort.Strings(names)
	return names, nil
}

func (p *Profiles) Save(ctx context.Context, name string, s *Settings) error {
	path, err := p.path(name)
	if err != nil {
		return err
	}
	if err := Write(path, s); err != nil {
		return err
	}
	otelzap.Ctx(ctx).Info("Profile saved", zap.String("profile", name), zap.String("path", path))
	return nil
}

// Load reads and validates a profile.
func (p *Profiles) Load(ctx context.Context, name string) (*Settings, error) {
	path, err := p.path(name)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, regen_err.NewExpectedError(cerr.Newf("profile %q does not exist", name))
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, regen_err.NewConfigError("cannot read profile "+name, err)
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, regen_err.NewConfigError("cannot decode profile "+name, err)
	}
	applyDefaults(&s)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	otelzap.Ctx(ctx).Debug("Profile loaded", zap.String("profile", name))
	return &s, nil
}

func (p *Profiles) Delete(ctx context.Context, name string) error {
	path, err := p.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return regen_err.NewExpectedError(cerr.Newf("profile %q does not exist", name))
		}
		return cerr.Wrapf(err, "failed to delete profile %s", name)
	}
	otelzap.Ctx(ctx).Info("Profile deleted", zap.String("profile", name))
	return nil
}
