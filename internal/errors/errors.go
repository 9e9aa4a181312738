package errors

import (
	"errors"
	"fmt"
)

type Code string

const (
	ErrTimeout    Code = "TIMEOUT"
	ErrNetwork    Code = "NETWORK"
	ErrParse      Code = "PARSE"
	ErrValidation Code = "VALIDATION"
	ErrNotFound   Code = "NOT_FOUND"
	ErrPermission Code = "PERMISSION"
	ErrUnknown    Code = "UNKNOWN"

	// Asset resolver failures.
	ErrInvalidInput Code = "INVALID_INPUT"
	ErrForbidden    Code = "FORBIDDEN"
	ErrTransfer     Code = "TRANSFER"
	ErrEmptyFile    Code = "EMPTY_FILE"
)

// DefaultRecoverable reports whether a failure of the given class may succeed
// on a later attempt. Validation failures are decided per call site.
func (c Code) DefaultRecoverable() bool {
	switch c {
	case ErrTimeout, ErrNetwork, ErrUnknown, ErrTransfer:
		return true
	default:
		return false
	}
}

type Error struct {
	Code        Code
	Message     string
	Recoverable bool
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error whose recoverability follows the code's default.
func New(code Code, message string, err error) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Recoverable: code.DefaultRecoverable(),
		Err:         err,
	}
}

// NewRecoverable builds an error with an explicit recoverability flag.
func NewRecoverable(code Code, message string, recoverable bool, err error) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Recoverable: recoverable,
		Err:         err,
	}
}

func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// IsRecoverable reports whether err is eligible for retry. Errors outside the
// taxonomy are treated as unknown and therefore recoverable.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable
	}
	return true
}
