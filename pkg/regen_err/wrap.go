// pkg/regen_err/wrap.go

package regen_err

import (
	cerr "github.com/cockroachdb/errors"
)

func WrapValidationError(err error) error {
	return cerr.WithHint(cerr.WithStack(err), "settings validation failed")
}

// WrapWithSummary attaches a one-line summary of process output as a hint.
func WrapWithSummary(err error, output string) error {
	if err == nil {
		return nil
	}
	return cerr.WithHint(cerr.WithStack(err), ExtractSummary(output, 3))
}
