// pkg/execute/types.go

package execute

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

// DefaultLogger is used when Options.Logger is nil.
var DefaultLogger *zap.Logger

// ErrTimeout is returned when a process outlives Options.Timeout.
var ErrTimeout = errors.New("process timed out")

// Options describes a single process invocation.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to os.Environ()
	Timeout time.Duration
	Capture bool // return combined output from Run
	Logger  *zap.Logger
}

// StreamKind tells which pipe a line came from.
type StreamKind int

const (
	Stdout StreamKind = iota
	Stderr
)

func (k StreamKind) String() string {
	if k == Stderr {
		return "stderr"
	}
	return "stdout"
}

// Line is one newline-terminated chunk of process output, without the newline.
type Line struct {
	Stream StreamKind
	Text   string
}
