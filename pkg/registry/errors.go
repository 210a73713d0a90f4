package registry

import (
	"errors"
	"strings"
)

var (
	errEmpty         = errors.New("registry: value is empty")
	errKind          = errors.New("registry: value kind does not match field kind")
	errNotNumber     = errors.New("registry: value is not a finite number")
	errUnknownOption = errors.New("registry: value is not one of the options")
	errRule          = errors.New("registry: validation rule failed")
)

// IsEmpty reports whether err came from an unset or blank value.
func IsEmpty(err error) bool {
	return errors.Is(err, errEmpty)
}

// IsKindMismatch reports whether err came from a value of the wrong shape,
// for example a selection set stored against a text field.
func IsKindMismatch(err error) bool {
	return errors.Is(err, errKind)
}

// Reason returns a short, user-facing explanation for a Check failure, or ""
// when err is nil.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errEmpty):
		return "this answer is required"
	case errors.Is(err, errNotNumber):
		return "enter a number"
	case errors.Is(err, errUnknownOption):
		return "pick one of the listed options"
	case errors.Is(err, errKind):
		return "this answer has the wrong shape"
	case errors.Is(err, errRule):
		msg := err.Error()
		return strings.TrimPrefix(msg, errRule.Error()+": ")
	default:
		return err.Error()
	}
}
