package counter

import (
	"errors"
	"fmt"
)

const errFmt = "%s: %s"

// Common errors for Service implementations.
var (
	ErrInvalidValue = errors.New("invalid counter value")
	ErrNotFound     = errors.New("counter not found")
)

// Error wraps common Service errors.
type Error struct {
	err error
	msg string
}

func (e *Error) Error() string {
	return e.msg
}

// IsInvalidValue indicates if err is ErrInvalidValue.
func IsInvalidValue(err error) bool {
	return unwrapError(err) == ErrInvalidValue
}

// IsNotFound indicates if err is ErrNotFound.
func IsNotFound(err error) bool {
	return unwrapError(err) == ErrNotFound
}

func unwrapError(err error) error {
	switch e := err.(type) {
	case *Error:
		return e.err
	}

	return err
}

func wrapError(err error, format string, args ...interface{}) error {
	return &Error{
		err: err,
		msg: fmt.Sprintf(
			errFmt,
			err,
			fmt.Sprintf(format, args...),
		),
	}
}
