package services

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")

	// ErrCancelled marks a task that was cancelled at a stage boundary.
	ErrCancelled = errors.New("cancelled")
)

// Category is the stable failure code surfaced to API callers.
type Category string

const (
	CategoryStageTimeout      Category = "stage_timeout"
	CategoryStageExecution    Category = "stage_execution"
	CategoryBackendInvocation Category = "backend_invocation"
	CategoryContractViolation Category = "contract_violation"
	CategoryCancelled         Category = "cancelled"
	CategoryValidation        Category = "validation"
	CategoryConfiguration     Category = "configuration"
	CategoryInternal          Category = "internal"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// StageTimeoutError reports an external process that outlived its deadline
// and was killed.
type StageTimeoutError struct {
	Stage      string
	Executable string
	Timeout    time.Duration
}

func (e *StageTimeoutError) Error() string {
	return fmt.Sprintf("%s: %s exceeded timeout %s and was killed", e.Stage, e.Executable, e.Timeout)
}

func (e *StageTimeoutError) Unwrap() error { return ErrTimeout }

func (e *StageTimeoutError) Category() Category { return CategoryStageTimeout }

// StageExecutionError reports an external process that could not be started,
// exited non-zero, or exited cleanly without producing its declared outputs.
// ExitCode is -1 when the process never ran.
type StageExecutionError struct {
	Stage      string
	Executable string
	ExitCode   int
	Stderr     string
	Err        error
}

func (e *StageExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s exited with code %d", e.Stage, e.Executable, e.ExitCode)
	if e.Err != nil && e.ExitCode <= 0 {
		msg = fmt.Sprintf("%s: %s failed: %v", e.Stage, e.Executable, e.Err)
	}
	if tail := strings.TrimSpace(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *StageExecutionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrExternalTool
}

func (e *StageExecutionError) Category() Category { return CategoryStageExecution }

// BackendInvocationError reports a transcription or translation backend failure.
type BackendInvocationError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendInvocationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s backend %q failed", e.Op, e.Backend)
	}
	return fmt.Sprintf("%s backend %q failed: %v", e.Op, e.Backend, e.Err)
}

func (e *BackendInvocationError) Unwrap() error { return e.Err }

func (e *BackendInvocationError) Category() Category { return CategoryBackendInvocation }

// ContractViolationError reports output that breaks the downstream contract
// (ordering, overlap, required fields, identifier format).
type ContractViolationError struct {
	Field  string
	Reason string
}

func (e *ContractViolationError) Error() string {
	if e.Field == "" {
		return "contract violation: " + e.Reason
	}
	return fmt.Sprintf("contract violation: %s: %s", e.Field, e.Reason)
}

func (e *ContractViolationError) Category() Category { return CategoryContractViolation }

// Classify maps an error to its stable category. Cancellation wins over any
// typed error wrapping it.
func Classify(err error) Category {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrCancelled) {
		return CategoryCancelled
	}
	var categorized interface{ Category() Category }
	if errors.As(err, &categorized) {
		return categorized.Category()
	}
	switch {
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return CategoryConfiguration
	case errors.Is(err, ErrTimeout):
		return CategoryStageTimeout
	default:
		return CategoryInternal
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
