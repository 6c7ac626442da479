// pkg/packer/overrides.go

package packer

import "sort"

// OverrideTable maps an input file name to the replacement file name used
// in its place. It is immutable once built.
type OverrideTable struct {
	m map[string]string
}

// NewOverrideTable copies pairs into a new table.
func NewOverrideTable(pairs map[string]string) OverrideTable {
	m := make(map[string]string, len(pairs))
	for k, v := range pairs {
		m[k] = v
	}
	return OverrideTable{m: m}
}

// Lookup returns the replacement name for a file name.
func (t OverrideTable) Lookup(name string) (string, bool) {
	r, ok := t.m[name]
	return r, ok
}

func (t OverrideTable) Len() int { return len(t.m) }

// Sources lists the overridden file names in sorted order.
func (t OverrideTable) Sources() []string {
	out := make([]string, 0, len(t.m))
	for k := range t.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
