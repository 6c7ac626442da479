/* pkg/regen_io/yaml.go */

package regen_io

import (
	"context"
	"os"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/xdg"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// WriteYAML writes data to a YAML file
func WriteYAML(ctx context.Context, filePath string, in any) error {
	log := otelzap.Ctx(ctx)
	log.Debug("Writing YAML file", zap.String("path", filePath))

	data, err := yaml.Marshal(in)
	if err != nil {
		return cerr.Wrap(err, "failed to marshal YAML")
	}
	if err := os.WriteFile(filePath, data, xdg.FilePermStandard); err != nil {
		log.Error("Failed to write YAML file", zap.String("path", filePath), zap.Error(err))
		return cerr.Wrap(err, "failed to write YAML file")
	}
	return nil
}

// MarshalYAML renders v as YAML text, used by `config show --yaml`.
func MarshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", cerr.Wrap(err, "failed to marshal YAML")
	}
	return string(data), nil
}
