package model

import (
	"strings"
)

// FieldID identifies a field inside a FormSchema.
type FieldID string

// FieldKind is the closed set of input kinds a field can take.
type FieldKind string

const (
	FieldKindText         FieldKind = "text"
	FieldKindNumber       FieldKind = "number"
	FieldKindSingleChoice FieldKind = "single_choice"
	FieldKindMultiChoice  FieldKind = "multi_choice"
)

// Valid reports whether k is one of the known kinds.
func (k FieldKind) Valid() bool {
	switch k {
	case FieldKindText, FieldKindNumber, FieldKindSingleChoice, FieldKindMultiChoice:
		return true
	default:
		return false
	}
}

// IsChoice reports whether the kind draws its values from Options.
func (k FieldKind) IsChoice() bool {
	return k == FieldKindSingleChoice || k == FieldKindMultiChoice
}

const (
	ValidationRuleMin       = "min"
	ValidationRuleMax       = "max"
	ValidationRuleMinLength = "minLength"
	ValidationRuleMaxLength = "maxLength"
	ValidationRulePattern   = "pattern"
)

// ValidationRule represents a single constraint applied to a field on top of
// its kind. Numeric bounds and length limits encode their threshold in
// Params["value"] while pattern rules keep the expression in Params["pattern"].
type ValidationRule struct {
	Kind   string            `json:"kind" yaml:"kind"`
	Params map[string]string `json:"params,omitempty" yaml:"params,omitempty"`
}

// FieldDefinition describes one input of the form.
type FieldDefinition struct {
	ID          FieldID           `json:"id" yaml:"id"`
	Kind        FieldKind         `json:"kind" yaml:"kind"`
	Required    bool              `json:"required" yaml:"required"`
	Label       string            `json:"label,omitempty" yaml:"label,omitempty"`
	Help        string            `json:"help,omitempty" yaml:"help,omitempty"`
	Placeholder string            `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Options     []string          `json:"options,omitempty" yaml:"options,omitempty"`
	Validations []ValidationRule  `json:"validations,omitempty" yaml:"validations,omitempty"`
	VisibleWhen string            `json:"visibleWhen,omitempty" yaml:"visibleWhen,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DisplayLabel returns the label, falling back to the field id.
func (f FieldDefinition) DisplayLabel() string {
	if label := strings.TrimSpace(f.Label); label != "" {
		return label
	}
	return string(f.ID)
}

// HasOption reports whether value is one of the declared options.
func (f FieldDefinition) HasOption(value string) bool {
	for _, option := range f.Options {
		if option == value {
			return true
		}
	}
	return false
}

// Rule returns the first validation rule of the given kind.
func (f FieldDefinition) Rule(kind string) (ValidationRule, bool) {
	for _, rule := range f.Validations {
		if rule.Kind == kind {
			return rule, true
		}
	}
	return ValidationRule{}, false
}

// StepDefinition is a named, ordered group of fields shown together.
type StepDefinition struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Fields      []FieldID `json:"fields" yaml:"fields"`
}

// SyncPolicy declares the minimum data a session needs before partial answers
// are pushed to the lead-capture endpoint: every Required field and at least
// one of AnyOf must be satisfied.
type SyncPolicy struct {
	Required []FieldID `json:"required,omitempty" yaml:"required,omitempty"`
	AnyOf    []FieldID `json:"anyOf,omitempty" yaml:"anyOf,omitempty"`
}

// FormSchema is the immutable definition of a multi-step form. Step order is
// fixed at definition time.
type FormSchema struct {
	ID          string                      `json:"id" yaml:"id"`
	Title       string                      `json:"title,omitempty" yaml:"title,omitempty"`
	Description string                      `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string                      `json:"version,omitempty" yaml:"version,omitempty"`
	Steps       []StepDefinition            `json:"steps" yaml:"steps"`
	Fields      map[FieldID]FieldDefinition `json:"fields" yaml:"fields"`
	Sync        *SyncPolicy                 `json:"sync,omitempty" yaml:"sync,omitempty"`
}

// StepCount returns the number of steps.
func (s FormSchema) StepCount() int {
	return len(s.Steps)
}

// Step returns the step at index.
func (s FormSchema) Step(index int) (StepDefinition, bool) {
	if index < 0 || index >= len(s.Steps) {
		return StepDefinition{}, false
	}
	return s.Steps[index], true
}

// Field looks up a field definition by id.
func (s FormSchema) Field(id FieldID) (FieldDefinition, bool) {
	field, ok := s.Fields[id]
	return field, ok
}

// StepIndexOf returns the index of the step owning id.
func (s FormSchema) StepIndexOf(id FieldID) (int, bool) {
	for i, step := range s.Steps {
		for _, fieldID := range step.Fields {
			if fieldID == id {
				return i, true
			}
		}
	}
	return -1, false
}

// StepFields resolves the field definitions of a step in declaration order.
// Unknown ids are skipped; Validate reports them.
func (s FormSchema) StepFields(index int) []FieldDefinition {
	step, ok := s.Step(index)
	if !ok {
		return nil
	}
	out := make([]FieldDefinition, 0, len(step.Fields))
	for _, id := range step.Fields {
		if field, ok := s.Fields[id]; ok {
			out = append(out, field)
		}
	}
	return out
}
