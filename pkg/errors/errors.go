package errors

import (
	"fmt"
	"runtime"
	"strings"
)

// Error codes for the emergency core. Delivery misses are informational and
// deliberately have no code here.
const (
	CodeValidation  = 1001 // inbound event missing a required field
	CodePersistence = 1002 // durable write failed
	CodeAcquisition = 1003 // client-side location/microphone unavailable
	CodeInternal    = 1500
)

// Error represents a custom error with code and stack trace.
type Error struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
	Stack   string     `json:"stack,omitempty"`
	Context []KeyValue `json:"context,omitempty"`
}

// KeyValue represents a key-value pair for context.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements the errors.Wrapper interface.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithCode creates a new error with code.
func WithCode(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(),
	}
}

// WithCodef creates a new error with code and formatted message.
func WithCodef(code int, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(),
	}
}

// Validation creates a ValidationError for a dropped inbound event.
func Validation(event, field string) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: fmt.Sprintf("%s: missing required field %s", event, field),
		Stack:   captureStack(),
	}
}

// Persistence wraps a failed durable write.
func Persistence(err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    CodePersistence,
		Message: "emergency record write failed",
		Err:     err,
		Stack:   captureStack(),
	}
}

// Acquisition wraps a failed location or audio acquisition on the client.
func Acquisition(what string, err error) *Error {
	return &Error{
		Code:    CodeAcquisition,
		Message: fmt.Sprintf("%s unavailable", what),
		Err:     err,
		Stack:   captureStack(),
	}
}

// Wrap wraps an error with message.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

// Wrapf wraps an error with formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Stack:   captureStack(),
	}
}

// New creates a new error.
func New(message string) *Error {
	return &Error{
		Message: message,
		Stack:   captureStack(),
	}
}

// Errorf creates a new formatted error.
func Errorf(format string, args ...interface{}) *Error {
	return &Error{
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(),
	}
}

// WithContext adds context to an error without mutating the original.
func (e *Error) WithContext(key, value string) *Error {
	if e == nil {
		return nil
	}
	newErr := &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Stack:   e.Stack,
		Context: make([]KeyValue, len(e.Context)),
	}
	copy(newErr.Context, e.Context)
	newErr.Context = append(newErr.Context, KeyValue{Key: key, Value: value})
	return newErr
}

// captureStack captures the current stack trace.
func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}
	return strings.TrimSpace(stack)
}

// GetCode returns the error code.
func GetCode(err error) int {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return 0
}

// GetMessage returns the error message.
func GetMessage(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return GetCode(err) == CodeValidation }

// IsPersistence reports whether err is a PersistenceError.
func IsPersistence(err error) bool { return GetCode(err) == CodePersistence }

// IsAcquisition reports whether err is an AcquisitionError.
func IsAcquisition(err error) bool { return GetCode(err) == CodeAcquisition }
