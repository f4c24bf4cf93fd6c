package errors

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Upload validation errors
	ErrorTypeInvalidInputKind ErrorType = "invalid_input_kind"
	ErrorTypeInputTooLarge    ErrorType = "input_too_large"

	// Pipeline errors
	ErrorTypeDecodeFailure ErrorType = "decode_failure"
	ErrorTypeRenderFailure ErrorType = "render_failure"

	// Caller errors
	ErrorTypeInvalidArgument ErrorType = "invalid_argument"
	ErrorTypeNotReady        ErrorType = "not_ready"

	// System errors
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error codes for specific scenarios
const (
	CodeInvalidInputKind = "INVALID_INPUT_KIND"
	CodeInputTooLarge    = "INPUT_TOO_LARGE"
	CodeDecodeFailure    = "DECODE_FAILURE"
	CodeRenderFailure    = "RENDER_FAILURE"
	CodeInvalidArgument  = "INVALID_ARGUMENT"
	CodeNotReady         = "NOT_READY"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Sentinels for errors.Is. They are compared by Type only and must never be
// mutated through the With* builders.
var (
	ErrInvalidInputKind = &AppError{Type: ErrorTypeInvalidInputKind, Code: CodeInvalidInputKind}
	ErrInputTooLarge    = &AppError{Type: ErrorTypeInputTooLarge, Code: CodeInputTooLarge}
	ErrDecodeFailure    = &AppError{Type: ErrorTypeDecodeFailure, Code: CodeDecodeFailure}
	ErrRenderFailure    = &AppError{Type: ErrorTypeRenderFailure, Code: CodeRenderFailure}
	ErrInvalidArgument  = &AppError{Type: ErrorTypeInvalidArgument, Code: CodeInvalidArgument}
	ErrNotReady         = &AppError{Type: ErrorTypeNotReady, Code: CodeNotReady}
	ErrInternal         = &AppError{Type: ErrorTypeInternal, Code: CodeInternalError}
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
	Stack      []string       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Type)
	}
	if e.InnerError != nil {
		return msg + ": " + e.InnerError.Error()
	}
	return msg
}

// Unwrap returns the inner error
func (e *AppError) Unwrap() error {
	return e.InnerError
}

// Is reports whether target is an AppError of the same type.
func (e *AppError) Is(target error) bool {
	var targetApp *AppError
	if errors.As(target, &targetApp) {
		return e.Type == targetApp.Type
	}
	return false
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithStack captures the call stack
func (e *AppError) WithStack() *AppError {
	e.Stack = captureStack(3)
	return e
}

// New creates a new AppError
func New(errType ErrorType, message string) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Code:    codeFor(errType),
	}
}

// NewInvalidInputKind rejects an upload whose declared kind is not an image.
func NewInvalidInputKind(kind string) *AppError {
	return New(ErrorTypeInvalidInputKind, fmt.Sprintf("declared kind %q is not an image", kind)).
		WithDetail("kind", kind)
}

// NewInputTooLarge rejects an upload above the size limit.
func NewInputTooLarge(size, limit int64) *AppError {
	return New(ErrorTypeInputTooLarge, fmt.Sprintf("input of %d bytes exceeds the %d byte limit", size, limit)).
		WithDetail("size", size).
		WithDetail("limit", limit)
}

// NewDecodeFailure wraps an error raised while decoding source bytes.
func NewDecodeFailure(err error) *AppError {
	return WrapWithType(err, ErrorTypeDecodeFailure, "source image could not be decoded")
}

// NewRenderFailure wraps an error raised while drawing or encoding.
func NewRenderFailure(message string, err error) *AppError {
	return WrapWithType(err, ErrorTypeRenderFailure, message)
}

// NewInvalidArgument reports a value a caller is not allowed to set.
func NewInvalidArgument(field string, value any, reason string) *AppError {
	return New(ErrorTypeInvalidArgument, fmt.Sprintf("invalid value for %s: %v", field, value)).
		WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// NewNotReady reports an operation that needs state which does not exist yet.
func NewNotReady(message string) *AppError {
	return New(ErrorTypeNotReady, message)
}

// NewInternal creates an internal error
func NewInternal(message string) *AppError {
	return New(ErrorTypeInternal, message)
}

// FromError converts a standard error to AppError
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Type:       ErrorTypeUnknown,
		Code:       codeFor(ErrorTypeUnknown),
		InnerError: err,
	}
}

// Wrap wraps an error with additional context, keeping its type.
func Wrap(err error, message string) *AppError {
	return WrapWithType(err, FromError(err).Type, message)
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       codeFor(errType),
	}
}

// TypeOf returns the ErrorType of err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}
	return FromError(err).Type
}

// IsType checks whether err carries the given type anywhere in its chain.
func IsType(err error, errType ErrorType) bool {
	return errors.Is(err, &AppError{Type: errType})
}

// Safely runs fn and converts a panic into an internal AppError with a stack.
func Safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			var appErr *AppError
			switch v := r.(type) {
			case error:
				appErr = WrapWithType(v, ErrorTypeInternal, "panic recovered")
			case string:
				appErr = New(ErrorTypeInternal, v)
			default:
				appErr = New(ErrorTypeInternal, fmt.Sprintf("%v", v))
			}
			err = appErr.WithStack()
		}
	}()
	return fn()
}

// Format formats an error as a single log-friendly line.
func Format(err error) string {
	if err == nil {
		return ""
	}

	appErr := FromError(err)

	parts := []string{fmt.Sprintf("[%s] %s", appErr.Type, appErr.Error())}
	if appErr.Code != "" {
		parts = append(parts, "code="+appErr.Code)
	}

	keys := make([]string, 0, len(appErr.Details))
	for k := range appErr.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, appErr.Details[k]))
	}

	return strings.Join(parts, " | ")
}

func codeFor(errType ErrorType) string {
	switch errType {
	case ErrorTypeInvalidInputKind:
		return CodeInvalidInputKind
	case ErrorTypeInputTooLarge:
		return CodeInputTooLarge
	case ErrorTypeDecodeFailure:
		return CodeDecodeFailure
	case ErrorTypeRenderFailure:
		return CodeRenderFailure
	case ErrorTypeInvalidArgument:
		return CodeInvalidArgument
	case ErrorTypeNotReady:
		return CodeNotReady
	case ErrorTypeInternal:
		return CodeInternalError
	default:
		return string(errType)
	}
}

// captureStack captures the call stack
func captureStack(skip int) []string {
	var stack []string
	for i := skip; i < 12; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		fn := runtime.FuncForPC(pc)
		if fn == nil {
			continue
		}

		funcName := fn.Name()
		if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
			funcName = funcName[idx+1:]
		}

		stack = append(stack, fmt.Sprintf("%s:%d %s", file, line, funcName))
	}
	return stack
}
