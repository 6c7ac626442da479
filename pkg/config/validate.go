// pkg/config/validate.go

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus cross-field rules and returns a
// config-category error listing every problem.
func (s *Settings) Validate() error {
	var problems []string

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return regen_err.NewConfigError("settings validation failed", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
		}
	}

	seen := map[string]bool{}
	for _, src := range s.Sources {
		key := strings.ToLower(src.Name)
		if key != "" && seen[key] {
			problems = append(problems, fmt.Sprintf("duplicate source name %q", src.Name))
		}
		seen[key] = true

		if src.AutoManage && src.Remote == "" {
			problems = append(problems, fmt.Sprintf("source %q: auto_manage requires remote", src.Name))
		}
		if len(src.Overrides) > 0 && src.OverrideDir == "" {
			problems = append(problems, fmt.Sprintf("source %q: overrides require override_dir", src.Name))
		}
		if src.Build != nil && !src.AutoManage {
			problems = append(problems, fmt.Sprintf("source %q: build requires auto_manage", src.Name))
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return regen_err.NewConfigError(
		"invalid settings",
		regen_err.WrapValidationError(errors.New(strings.Join(problems, "; "))),
		"Fix the listed fields in the settings file",
		"Or run 'regen config init --force' to restore defaults",
	)
}
