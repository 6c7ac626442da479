// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Run executes a command to completion. Combined stdout and stderr are
// buffered and returned when Capture is set, or alongside any error.
func Run(ctx context.Context, opts Options) (string, error) {
	cmdStr := buildCommandString(opts.Command, opts.Args...)
	logger := resolveLogger(opts.Logger)
	if ctx == nil {
		ctx = context.Background()
	}

	rc, cancel := context.WithTimeout(ctx, defaultTimeout(opts.Timeout))
	defer cancel()

	rc, span := telemetry.Start(rc, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
		attribute.String("dir", opts.Dir),
	)

	logger.Info("Starting execution", zap.String("command", cmdStr), zap.String("dir", opts.Dir))

	cmd := exec.CommandContext(rc, opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = environ(opts.Env)
	cmd.WaitDelay = waitDelay

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	output := buf.String()

	if rc.Err() == context.DeadlineExceeded {
		span.RecordError(ErrTimeout)
		logger.Error("Execution timed out",
			zap.String("command", cmdStr),
			zap.Duration("timeout", defaultTimeout(opts.Timeout)))
		return output, cerr.Wrapf(ErrTimeout, "%s", cmdStr)
	}

	if err != nil && cerr.Is(rc.Err(), context.Canceled) {
		logger.Warn("Execution cancelled", zap.String("command", cmdStr))
		return output, cerr.Wrapf(rc.Err(), "%s", cmdStr)
	}

	if err != nil {
		summary := regen_err.ExtractSummary(output, 2)
		span.RecordError(err)
		logger.Error("Execution failed", zap.Error(err),
			zap.String("command", cmdStr),
			zap.Int("exit_code", ExitCode(err)),
			zap.String("summary", summary),
		)
		return output, cerr.Wrapf(err, "command failed: %s", cmdStr)
	}

	logger.Info("Execution succeeded", zap.String("command", cmdStr))
	if opts.Capture {
		return output, nil
	}
	return "", nil
}
