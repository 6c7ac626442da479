// pkg/report/types.go

package report

import (
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/packer"
)

// Status is the final state of one source in a run.
type Status int

const (
	StatusPending Status = iota
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// SourceReport records what happened to one source.
type SourceReport struct {
	Name      string
	Status    Status
	Stage     string // last stage entered
	Commit    string
	Updated   bool
	Built     bool
	ToolExit  *int // nil when the tool never ran
	Packs     []packer.PackResult
	Collected int
	Missing   []string
	Warnings  []string
	Err       error
	Duration  time.Duration
}

// Warn appends a non-fatal problem.
func (s *SourceReport) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// RunReport is the outcome of one orchestrated run.
type RunReport struct {
	RunID    string
	Started  time.Time
	Duration time.Duration
	Backup   string // snapshot name, empty when none was taken
	Sources  []SourceReport
}

// Failed returns the sources that did not complete.
func (r RunReport) Failed() []SourceReport {
	var out []SourceReport
	for _, s := range r.Sources {
		if s.Status == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// OK reports whether every source completed.
func (r RunReport) OK() bool {
	return len(r.Failed()) == 0
}

// Source finds a source report by name.
func (r RunReport) Source(name string) (SourceReport, bool) {
	for _, s := range r.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceReport{}, false
}
