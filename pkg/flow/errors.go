package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formflow/pkg/registry"
)

var (
	// ErrIncompleteForm is matched by *IncompleteFormError.
	ErrIncompleteForm = errors.New("flow: form is incomplete")
	// ErrStepOutOfRange is returned by GoTo for indices outside the schema.
	ErrStepOutOfRange = errors.New("flow: step index out of range")
	// ErrUnknownField is returned when answering a field the schema lacks.
	ErrUnknownField = errors.New("flow: unknown field")
	// ErrValueKind is returned when a value's shape does not fit the field,
	// for example a selection set for a text field.
	ErrValueKind = errors.New("flow: value kind does not match field")
	// ErrStepIncomplete is returned by Next under strict navigation.
	ErrStepIncomplete = errors.New("flow: current step is incomplete")
)

// IncompleteFormError lists the required fields that block submission.
type IncompleteFormError struct {
	Missing []registry.FieldRef
}

func (e *IncompleteFormError) Error() string {
	if e == nil || len(e.Missing) == 0 {
		return ErrIncompleteForm.Error()
	}
	names := make([]string, 0, len(e.Missing))
	for _, ref := range e.Missing {
		names = append(names, string(ref.Field))
	}
	return fmt.Sprintf("%s: missing %s", ErrIncompleteForm.Error(), strings.Join(names, ", "))
}

func (e *IncompleteFormError) Is(target error) bool {
	return target == ErrIncompleteForm
}

// FirstStep returns the lowest step index holding a missing field.
func (e *IncompleteFormError) FirstStep() int {
	if e == nil || len(e.Missing) == 0 {
		return -1
	}
	first := e.Missing[0].Step
	for _, ref := range e.Missing[1:] {
		if ref.Step < first {
			first = ref.Step
		}
	}
	return first
}
