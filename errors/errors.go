package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ErrorType represents the class of a core error.
type ErrorType string

const (
	// ErrorTypeConfiguration marks a broken deployment: missing module, missing factory
	// symbol, duplicate capability, topic type mismatch.
	ErrorTypeConfiguration ErrorType = "configuration"

	// ErrorTypeLifecycle marks misuse of the start/stop/destroy protocol.
	ErrorTypeLifecycle ErrorType = "lifecycle"

	// ErrorTypePlugin marks a failure reported by a plugin's own processing.
	ErrorTypePlugin ErrorType = "plugin"

	// ErrorTypeInternal marks an unexpected condition inside the core.
	ErrorTypeInternal ErrorType = "internal"

	ErrorTypeUnknown ErrorType = "unknown"
)

// CoreError is a structured error raised by the runtime core.
type CoreError struct {
	Type       ErrorType      `json:"type"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	InnerError error          `json:"-"`
	Stack      []string       `json:"-"`
}

// Error implements the error interface
func (e *CoreError) Error() string {
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
func (e *CoreError) Unwrap() error {
	return e.InnerError
}

// Is reports whether target is a CoreError of the same type.
func (e *CoreError) Is(target error) bool {
	if t, ok := target.(*CoreError); ok {
		return e.Type == t.Type
	}
	return false
}

// WithCode sets the error code
func (e *CoreError) WithCode(code string) *CoreError {
	e.Code = code
	return e
}

// WithDetail adds a detail to the error
func (e *CoreError) WithDetail(key string, value any) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithInnerError sets the inner error
func (e *CoreError) WithInnerError(err error) *CoreError {
	e.InnerError = err
	return e
}

// WithStack captures the call stack
func (e *CoreError) WithStack() *CoreError {
	e.Stack = captureStack(3)
	return e
}

// New creates a new CoreError
func New(errType ErrorType, message string) *CoreError {
	return &CoreError{
		Type:    errType,
		Message: message,
		Code:    string(errType),
	}
}

// Newf creates a new CoreError with a formatted message.
func Newf(errType ErrorType, format string, args ...any) *CoreError {
	return New(errType, fmt.Sprintf(format, args...))
}

// FromError converts a standard error to CoreError
func FromError(err error) *CoreError {
	if err == nil {
		return nil
	}

	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr
	}

	return &CoreError{
		Type:       ErrorTypeUnknown,
		Code:       string(ErrorTypeUnknown),
		Message:    err.Error(),
		InnerError: err,
	}
}

// WrapWithType wraps an error with a specific type
func WrapWithType(err error, errType ErrorType, message string) *CoreError {
	return &CoreError{
		Type:       errType,
		Message:    message,
		InnerError: err,
		Code:       string(errType),
	}
}

// Configuration errors
func NewConfiguration(format string, args ...any) *CoreError {
	return Newf(ErrorTypeConfiguration, format, args...)
}

// Lifecycle errors
func NewLifecycle(format string, args ...any) *CoreError {
	return Newf(ErrorTypeLifecycle, format, args...)
}

// Plugin errors
func NewPlugin(plugin string, err error) *CoreError {
	return WrapWithType(err, ErrorTypePlugin, fmt.Sprintf("plugin %q failed", plugin)).
		WithDetail("plugin", plugin)
}

// IsType reports whether err is (or wraps) a CoreError of the given type.
func IsType(err error, errType ErrorType) bool {
	var coreErr *CoreError
	if !errors.As(err, &coreErr) {
		return false
	}
	return coreErr.Type == errType
}

// Fatal raises err as an unrecoverable failure of the core. The panic value is
// always a *CoreError carrying the caller's stack.
func Fatal(err error) {
	if err == nil {
		return
	}
	coreErr := FromError(err)
	if coreErr.Stack == nil {
		coreErr.Stack = captureStack(2)
	}
	panic(coreErr)
}

// IsFatal reports whether a recovered panic value is a configuration or
// lifecycle error raised through Fatal. Such values must not be swallowed by
// code that recovers plugin panics.
func IsFatal(v any) (*CoreError, bool) {
	coreErr, ok := v.(*CoreError)
	if !ok {
		return nil, false
	}
	switch coreErr.Type {
	case ErrorTypeConfiguration, ErrorTypeLifecycle:
		return coreErr, true
	}
	return nil, false
}

// Recover converts a panic raised by Fatal back into an error. It must be
// called directly from a deferred function.
func Recover(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	switch v := r.(type) {
	case *CoreError:
		*errp = v
	case error:
		*errp = WrapWithType(v, ErrorTypeInternal, "panic recovered")
	default:
		*errp = Newf(ErrorTypeInternal, "panic recovered: %v", v)
	}
}

// Is, As and Join re-export the standard helpers so callers need one import.
var (
	Is   = errors.Is
	As   = errors.As
	Join = errors.Join
)

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
