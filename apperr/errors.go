package apperr

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode classifies assembly failures
type ErrorCode string

const (
	CodeAssetUnavailable     ErrorCode = "ASSET_UNAVAILABLE"
	CodeDurationDrift        ErrorCode = "DURATION_DRIFT"
	CodeAudioSynthesisFailed ErrorCode = "AUDIO_SYNTHESIS_FAILED"
	CodePlanInconsistent     ErrorCode = "PLAN_INCONSISTENT"
	CodeAssemblyTimeout      ErrorCode = "ASSEMBLY_TIMEOUT"
	CodeInvalidScript        ErrorCode = "INVALID_SCRIPT"
	CodeConfigInvalid        ErrorCode = "CONFIG_INVALID"
)

func (c ErrorCode) String() string { return string(c) }

// Fatal reports whether the code aborts an assembly run
func (c ErrorCode) Fatal() bool {
	switch c {
	case CodeAssetUnavailable, CodeDurationDrift:
		return false
	}
	return true
}

// AppError is the error type surfaced by every stage
type AppError struct {
	Raw     error
	Code    ErrorCode
	Message string
	Details map[string]string
}

// Error implements error interface
func (e AppError) Error() string {
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code.String(), e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", e.Code.String(), e.Message)
}

func (e AppError) Unwrap() error { return e.Raw }

// Is matches any AppError carrying the same code, so sentinels work with errors.Is
func (e AppError) Is(target error) bool {
	t, ok := target.(AppError)
	return ok && t.Code == e.Code
}

// WithDetail adds a detail to the error
func (e AppError) WithDetail(key, value string) AppError {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	e.Details = details
	return e
}

// Sentinels for errors.Is
var (
	ErrAssetUnavailable     = AppError{Code: CodeAssetUnavailable}
	ErrDurationDrift        = AppError{Code: CodeDurationDrift}
	ErrAudioSynthesisFailed = AppError{Code: CodeAudioSynthesisFailed}
	ErrPlanInconsistent     = AppError{Code: CodePlanInconsistent}
	ErrAssemblyTimeout      = AppError{Code: CodeAssemblyTimeout}
	ErrInvalidScript        = AppError{Code: CodeInvalidScript}
	ErrConfigInvalid        = AppError{Code: CodeConfigInvalid}
)

func ErrAssetUnavailableFor(tags []string, err error) AppError {
	return AppError{
		Raw:     err,
		Code:    CodeAssetUnavailable,
		Message: "No provider returned a usable asset",
	}.WithDetail("tags", strings.Join(tags, ","))
}

func ErrChartUnavailable(segment int, err error) AppError {
	return AppError{
		Raw:     err,
		Code:    CodeAssetUnavailable,
		Message: "Chart clip could not be rendered",
	}.WithDetail("segment", fmt.Sprintf("%d", segment))
}

func ErrDrift(segment int, estimated, actual time.Duration) AppError {
	return AppError{
		Code:    CodeDurationDrift,
		Message: "Actual audio duration drifted from estimate",
	}.WithDetail("segment", fmt.Sprintf("%d", segment)).
		WithDetail("estimated", estimated.String()).
		WithDetail("actual", actual.String())
}

func ErrAudioSynthesis(segment int, err error) AppError {
	return AppError{
		Raw:     err,
		Code:    CodeAudioSynthesisFailed,
		Message: "Narration synthesis failed",
	}.WithDetail("segment", fmt.Sprintf("%d", segment))
}

func ErrPlanInconsistentf(format string, args ...interface{}) AppError {
	return AppError{
		Code:    CodePlanInconsistent,
		Message: fmt.Sprintf(format, args...),
	}
}

func ErrAssemblyTimeoutAfter(elapsed time.Duration, err error) AppError {
	return AppError{
		Raw:     err,
		Code:    CodeAssemblyTimeout,
		Message: "Assembly run exceeded its time budget",
	}.WithDetail("elapsed", elapsed.Round(time.Millisecond).String())
}

func ErrInvalidScriptf(format string, args ...interface{}) AppError {
	return AppError{
		Code:    CodeInvalidScript,
		Message: fmt.Sprintf(format, args...),
	}
}

func ErrConfig(err error) AppError {
	return AppError{
		Raw:     err,
		Code:    CodeConfigInvalid,
		Message: "Invalid configuration",
	}
}
