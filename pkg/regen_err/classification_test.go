package regen_err

import (
	"errors"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestGetExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), 1},
		{"config", NewConfigError("bad path", nil), 2},
		{"wrapped config", cerr.Wrap(NewConfigError("bad path", nil), "loading"), 2},
		{"transport", NewTransportError("fetch failed", errors.New("dial")), 1},
		{"build", NewBuildError("no project", nil), 1},
		{"tool", NewToolError("timeout", ErrToolTimeout), 1},
		{"internal", NewInternalError("panic", nil), 3},
		{"cancelled", NewUserCancelledError("update"), 130},
		{"expected user error", NewExpectedError(errors.New("typo")), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestClassifiedErrorFormatting(t *testing.T) {
	t.Parallel()

	err := NewConfigError("output path missing", errors.New("stat /x: no such file"),
		"Create the directory", "Or change output_path")

	msg := err.Error()
	assert.Contains(t, msg, "output path missing")
	assert.Contains(t, msg, "Cause: stat /x")
	assert.Contains(t, msg, "1. Create the directory")
	assert.Contains(t, msg, "2. Or change output_path")
}

func TestClassifiedErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := NewToolError("tool run failed", ErrToolTimeout)
	assert.ErrorIs(t, err, ErrToolTimeout)

	cat, ok := CategoryOf(cerr.Wrap(err, "source a"))
	assert.True(t, ok)
	assert.Equal(t, CategoryTool, cat)
	assert.Equal(t, "tool", cat.String())

	_, ok = CategoryOf(errors.New("plain"))
	assert.False(t, ok)
}
