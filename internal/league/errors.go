package league

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotFound       = errors.New("not found")
	ErrStateConflict  = errors.New("state conflict")
	ErrTransientStore = errors.New("transient store error")
)

// Error is a domain error with a human-readable message.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Kind }

// Validation reports bad input or an unmet precondition.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing competition, team or match.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

// StateConflict reports an operation that the current state forbids.
func StateConflict(op, format string, args ...any) error {
	return &Error{Kind: ErrStateConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// TransientStore wraps a persistence failure that may succeed on retry.
func TransientStore(op string, err error) error {
	return &Error{Kind: ErrTransientStore, Op: op, Message: "store temporarily unavailable", Err: err}
}

// IsTransient reports whether err may succeed if retried.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStore)
}

// Message returns the human-readable part of a domain error, or err.Error()
// for anything else.
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
