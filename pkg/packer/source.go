// pkg/packer/source.go

package packer

import (
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/config"
	"go.uber.org/zap"
)

// FromSource builds a packer from a source's override list. A relative
// override directory is taken from the repository root.
func FromSource(logger *zap.Logger, src config.Source, repo string) *Packer {
	pairs := make(map[string]string, len(src.Overrides))
	for _, ov := range src.Overrides {
		pairs[ov.Source] = ov.Replacement
	}
	dir := src.OverrideDir
	if dir != "" && !filepath.IsAbs(dir) {
		dir = filepath.Join(repo, dir)
	}
	return New(logger, NewOverrideTable(pairs), dir)
}

// Groups resolves a source's generation groups against the repository root.
func Groups(src config.Source, repo string) []Group {
	if src.Pack == nil {
		return nil
	}
	groups := make([]Group, 0, len(src.Pack.Groups))
	for _, g := range src.Pack.Groups {
		input := g.Input
		if !filepath.IsAbs(input) {
			input = filepath.Join(repo, input)
		}
		groups = append(groups, Group{Name: g.Name, Input: input, Extensions: g.Extensions})
	}
	return groups
}
