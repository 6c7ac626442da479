// pkg/execute/stream.go

package execute

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/regen/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// waitDelay bounds how long Wait blocks on pipes held open by orphaned
// grandchildren after the process itself has exited.
const waitDelay = 5 * time.Second

// LineStream runs a process and yields its output one line at a time.
//
//	s, err := execute.Stream(ctx, opts)
//	for s.Next() {
//		use(s.Line())
//	}
//	code, err := s.Wait()
//
// Both pipes feed a single channel, so lines from stdout and stderr
// interleave in arrival order. Wait must always be called.
type LineStream struct {
	cmdStr  string
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	span    trace.Span
	logger  *zap.Logger

	lines  chan Line
	cur    Line
	stdout *lineWriter
	stderr *lineWriter

	waitErr  error
	finished bool
	code     int
	err      error
}

// Stream starts opts.Command and returns an iterator over its output.
// An error is returned only if the process could not be started.
func Stream(ctx context.Context, opts Options) (*LineStream, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := defaultTimeout(opts.Timeout)
	rc, cancel := context.WithTimeout(ctx, timeout)
	rc, span := telemetry.Start(rc, "execute.Stream",
		attribute.String("command", opts.Command),
		attribute.String("args", strings.Join(opts.Args, " ")),
	)

	s := &LineStream{
		cmdStr:  buildCommandString(opts.Command, opts.Args...),
		timeout: timeout,
		ctx:     rc,
		cancel:  cancel,
		span:    span,
		logger:  resolveLogger(opts.Logger),
		lines:   make(chan Line, 64),
	}
	s.stdout = &lineWriter{kind: Stdout, out: s.lines}
	s.stderr = &lineWriter{kind: Stderr, out: s.lines}

	cmd := exec.CommandContext(rc, opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = environ(opts.Env)
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		span.RecordError(err)
		span.End()
		cancel()
		return nil, cerr.Wrapf(err, "failed to start %s", s.cmdStr)
	}
	s.logger.Info("Process started",
		zap.String("command", s.cmdStr),
		zap.Int("pid", cmd.Process.Pid),
		zap.Duration("timeout", timeout))

	go func() {
		err := cmd.Wait()
		s.stdout.flush()
		s.stderr.flush()
		s.waitErr = err
		close(s.lines)
	}()

	return s, nil
}

// Next advances to the next output line. It returns false once the
// process has exited and all output has been consumed.
func (s *LineStream) Next() bool {
	l, ok := <-s.lines
	if !ok {
		return false
	}
	s.cur = l
	return true
}

// Line returns the line read by the last successful Next.
func (s *LineStream) Line() Line {
	return s.cur
}

// Wait drains any unread output and returns the exit code. A timeout
// yields (-1, ErrTimeout) and cancellation of the caller's context yields
// (-1, context.Canceled); a non-zero exit is not an error.
func (s *LineStream) Wait() (int, error) {
	if s.finished {
		return s.code, s.err
	}
	for range s.lines {
	}
	s.finished = true
	defer s.span.End()
	defer s.cancel()

	switch {
	case errors.Is(s.ctx.Err(), context.DeadlineExceeded):
		s.code, s.err = -1, ErrTimeout
		s.span.RecordError(ErrTimeout)
		s.logger.Error("Process timed out",
			zap.String("command", s.cmdStr),
			zap.Duration("timeout", s.timeout))
	case s.waitErr == nil:
		s.code = 0
	case errors.Is(s.ctx.Err(), context.Canceled):
		s.code, s.err = -1, cerr.Wrapf(s.ctx.Err(), "%s", s.cmdStr)
		s.span.RecordError(s.err)
		s.logger.Warn("Process cancelled", zap.String("command", s.cmdStr))
	default:
		var exitErr *exec.ExitError
		if errors.As(s.waitErr, &exitErr) {
			s.code = exitErr.ExitCode()
		} else {
			s.code, s.err = -1, cerr.Wrapf(s.waitErr, "waiting for %s", s.cmdStr)
			s.span.RecordError(s.waitErr)
		}
	}
	s.span.SetAttributes(attribute.Int("exit_code", s.code))
	s.logger.Info("Process exited", zap.String("command", s.cmdStr), zap.Int("exit_code", s.code))
	return s.code, s.err
}

// lineWriter splits a byte stream into lines. Each writer is driven by a
// single copy goroutine from os/exec, so buf needs no lock.
type lineWriter struct {
	kind StreamKind
	out  chan<- Line
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(b []byte) {
	w.out <- Line{Stream: w.kind, Text: strings.TrimRight(string(b), "\r")}
}
