// pkg/regen_err/classification.go
//
// Error classification with exit codes. Categories map onto pipeline
// stages so the orchestrator can decide what aborts a source.

package regen_err

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies errors for appropriate handling
type ErrorCategory int

const (
	// CategoryFileIO - per-file read/copy failures, counted and never fatal (exit 1)
	CategoryFileIO ErrorCategory = iota
	// CategoryConfig - missing or invalid paths and settings (exit 2)
	CategoryConfig
	// CategoryTransport - clone, fetch and seed download (exit 1)
	CategoryTransport
	// CategoryBuild - project build failures (exit 1)
	CategoryBuild
	// CategoryTool - external tool missing or timed out (exit 1)
	CategoryTool
	// CategoryUser - user cancelled/interrupted (exit 130)
	CategoryUser
	// CategoryInternal - bugs in regen itself (exit 3)
	CategoryInternal
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryFileIO:
		return "file-io"
	case CategoryConfig:
		return "config"
	case CategoryTransport:
		return "transport"
	case CategoryBuild:
		return "build"
	case CategoryTool:
		return "tool"
	case CategoryUser:
		return "user"
	case CategoryInternal:
		return "internal"
	}
	return "unknown"
}

// ClassifiedError wraps an error with category and remediation info
type ClassifiedError struct {
	Category    ErrorCategory
	Message     string
	Cause       error
	Remediation []string
}

func (e *ClassifiedError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Cause != nil && e.Cause.Error() != e.Message {
		sb.WriteString(fmt.Sprintf("\n\nCause: %v", e.Cause))
	}

	if len(e.Remediation) > 0 {
		sb.WriteString("\n\nHow to fix:")
		for i, step := range e.Remediation {
			sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, step))
		}
	}
	return sb.String()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// ExitCode returns the process exit code for this error category
func (e *ClassifiedError) ExitCode() int {
	switch e.Category {
	case CategoryUser:
		return 130
	case CategoryConfig:
		return 2
	case CategoryInternal:
		return 3
	default:
		return 1
	}
}

// GetExitCode extracts exit code from any error.
// Returns 0 for nil and for expected user errors, 1 for unclassified errors.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.ExitCode()
	}

	if IsExpectedUserError(err) {
		return 0
	}
	return 1
}

// CategoryOf reports the category of err, or false when unclassified.
func CategoryOf(err error) (ErrorCategory, bool) {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category, true
	}
	return 0, false
}

func NewConfigError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryConfig,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

func NewTransportError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryTransport,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

func NewBuildError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryBuild,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

func NewToolError(message string, cause error, remediation ...string) error {
	return &ClassifiedError{
		Category:    CategoryTool,
		Message:     message,
		Cause:       cause,
		Remediation: remediation,
	}
}

func NewFileIOError(message string, cause error) error {
	return &ClassifiedError{
		Category: CategoryFileIO,
		Message:  message,
		Cause:    cause,
	}
}

// NewInternalError creates an error for regen bugs, usually a recovered panic.
func NewInternalError(message string, cause error) error {
	return &ClassifiedError{
		Category: CategoryInternal,
		Message:  message,
		Cause:    cause,
		Remediation: []string{
			"This is likely a bug in regen",
			"Rerun with --log-level=debug and include the log file in a report",
		},
	}
}

// NewUserCancelledError creates an error for user-initiated cancellation
func NewUserCancelledError(operation string) error {
	return &ClassifiedError{
		Category:    CategoryUser,
		Message:     fmt.Sprintf("Operation cancelled by user: %s", operation),
		Remediation: []string{"Run the command again to retry"},
	}
}
