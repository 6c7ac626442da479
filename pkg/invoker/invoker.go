// pkg/invoker/invoker.go

package invoker

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/progress"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/regen_err"
	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Minute

// DefaultArgs asks the tool to refresh its data and exit.
var DefaultArgs = []string{"--update"}

// Invoker runs the external update tool and relays its output to the log.
type Invoker struct {
	Args    []string
	Timeout time.Duration
	logger  *zap.Logger
}

func New(logger *zap.Logger, args []string, timeout time.Duration) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(args) == 0 {
		args = DefaultArgs
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Invoker{Args: args, Timeout: timeout, logger: logger.Named("invoker")}
}

// RunUpdate launches exe from its own directory and waits for it. A
// non-zero exit is returned as the code with a nil error; a failure to
// start, a timeout or a cancelled ctx yields an error.
func (i *Invoker) RunUpdate(ctx context.Context, exe string) (int, error) {
	ctx, span := telemetry.Start(ctx, "invoker.RunUpdate", attribute.String("exe", exe))
	defer span.End()

	log := i.logger.With(zap.String("exe", filepath.Base(exe)))
	log.Info("Running external tool",
		zap.Strings("args", i.Args),
		zap.Duration("timeout", i.Timeout))

	op := progress.Start(ctx, "Update tool "+filepath.Base(exe), progress.DefaultEvery)
	defer op.Done()

	stream, err := execute.Stream(ctx, execute.Options{
		Command: exe,
		Args:    i.Args,
		Dir:     filepath.Dir(exe),
		Timeout: i.Timeout,
		Logger:  i.logger,
	})
	if err != nil {
		span.RecordError(err)
		return -1, regen_err.NewToolError("failed to start "+filepath.Base(exe), err)
	}

	var stdout, stderr int
	for stream.Next() {
		line := stream.Line()
		if line.Stream == execute.Stderr {
			stderr++
			log.Warn(line.Text, zap.String("stream", "stderr"))
		} else {
			stdout++
			log.Debug(line.Text, zap.String("stream", "stdout"))
		}
	}

	code, err := stream.Wait()
	span.SetAttributes(attribute.Int("exit_code", code))
	if errors.Is(err, context.Canceled) {
		log.Warn("External tool cancelled")
		return -1, err
	}
	if err != nil {
		span.RecordError(err)
		log.Error("External tool did not finish", zap.Error(err))
		return -1, regen_err.NewToolError(filepath.Base(exe)+" did not finish", err,
			"Increase tool_timeout_minutes or run the tool manually")
	}

	if code != 0 {
		log.Warn("External tool exited with non-zero code, continuing",
			zap.Int("exit_code", code),
			zap.Int("stdout_lines", stdout),
			zap.Int("stderr_lines", stderr))
		return code, nil
	}

	log.Info("External tool completed",
		zap.Int("stdout_lines", stdout),
		zap.Int("stderr_lines", stderr))
	return 0, nil
}
