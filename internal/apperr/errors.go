package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies every error the session store, job controller and the
// upload/export/persistence adapters can return to a caller.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindUnknownChapter
	KindInvalidTransition
	KindJobStart
	KindJobAlreadyRunning
	KindUnsupportedFormat
	KindUpload
	KindExport
	KindPoll
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "InvalidInput"
	case KindUnknownChapter:
		return "UnknownChapter"
	case KindInvalidTransition:
		return "InvalidTransition"
	case KindJobStart:
		return "JobStartError"
	case KindJobAlreadyRunning:
		return "JobAlreadyRunning"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindUpload:
		return "UploadError"
	case KindExport:
		return "ExportError"
	case KindPoll:
		return "PollError"
	default:
		return "Unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	Cause   error
}

func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
	}
}

func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

func Wrap(cause error, kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Kind.String(), e.Message))

	if len(e.Context) > 0 {
		var ctxParts []string
		for k, v := range e.Context {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

// IsKind reports whether err (or anything it wraps) is an *Error of the
// given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}
