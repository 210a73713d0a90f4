package model

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrInvalidSchema is matched by every error returned from Validate.
var ErrInvalidSchema = errors.New("model: invalid schema")

// SchemaIssue is one problem found while validating a schema.
type SchemaIssue struct {
	Step    string  `json:"step,omitempty"`
	Field   FieldID `json:"field,omitempty"`
	Message string  `json:"message"`
}

func (i SchemaIssue) String() string {
	switch {
	case i.Field != "":
		return fmt.Sprintf("field %q: %s", i.Field, i.Message)
	case i.Step != "":
		return fmt.Sprintf("step %q: %s", i.Step, i.Message)
	default:
		return i.Message
	}
}

// SchemaError aggregates the issues of a schema that failed validation.
type SchemaError struct {
	Issues []SchemaIssue
}

func (e *SchemaError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return ErrInvalidSchema.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.String())
	}
	return ErrInvalidSchema.Error() + ": " + strings.Join(parts, "; ")
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}

// Validate checks the structural invariants of the schema: at least one step,
// unique step ids, every referenced field exists, every field belongs to
// exactly one step, kinds are known, choice fields declare options and
// validation rules carry parseable parameters.
func (s FormSchema) Validate() error {
	var issues []SchemaIssue
	add := func(issue SchemaIssue) {
		issues = append(issues, issue)
	}

	if strings.TrimSpace(s.ID) == "" {
		add(SchemaIssue{Message: "form id is required"})
	}
	if len(s.Steps) == 0 {
		add(SchemaIssue{Message: "at least one step is required"})
	}

	stepIDs := make(map[string]struct{}, len(s.Steps))
	owner := make(map[FieldID]string, len(s.Fields))
	for i, step := range s.Steps {
		name := step.ID
		if strings.TrimSpace(name) == "" {
			name = strconv.Itoa(i)
			add(SchemaIssue{Step: name, Message: "step id is required"})
		} else if _, dup := stepIDs[name]; dup {
			add(SchemaIssue{Step: name, Message: "duplicate step id"})
		}
		stepIDs[name] = struct{}{}

		for _, fieldID := range step.Fields {
			if _, ok := s.Fields[fieldID]; !ok {
				add(SchemaIssue{Step: name, Field: fieldID, Message: "references an undefined field"})
				continue
			}
			if prev, taken := owner[fieldID]; taken {
				add(SchemaIssue{Step: name, Field: fieldID, Message: fmt.Sprintf("already belongs to step %q", prev)})
				continue
			}
			owner[fieldID] = name
		}
	}

	for _, id := range sortedFieldIDs(s.Fields) {
		field := s.Fields[id]
		if field.ID != "" && field.ID != id {
			add(SchemaIssue{Field: id, Message: fmt.Sprintf("id mismatch with table key (%q)", field.ID)})
		}
		if _, ok := owner[id]; !ok {
			add(SchemaIssue{Field: id, Message: "does not belong to any step"})
		}
		for _, msg := range fieldIssues(field) {
			add(SchemaIssue{Field: id, Message: msg})
		}
	}

	if s.Sync != nil {
		for _, id := range append(append([]FieldID(nil), s.Sync.Required...), s.Sync.AnyOf...) {
			if _, ok := s.Fields[id]; !ok {
				add(SchemaIssue{Field: id, Message: "sync policy references an undefined field"})
			}
		}
	}

	if len(issues) > 0 {
		return &SchemaError{Issues: issues}
	}
	return nil
}

func fieldIssues(field FieldDefinition) []string {
	var out []string
	if !field.Kind.Valid() {
		out = append(out, fmt.Sprintf("unknown kind %q", field.Kind))
		return out
	}
	if field.Kind.IsChoice() {
		if len(field.Options) == 0 {
			out = append(out, "choice fields require options")
		}
		seen := make(map[string]struct{}, len(field.Options))
		for _, option := range field.Options {
			if _, dup := seen[option]; dup {
				out = append(out, fmt.Sprintf("duplicate option %q", option))
			}
			seen[option] = struct{}{}
		}
	}
	for _, rule := range field.Validations {
		switch rule.Kind {
		case ValidationRuleMin, ValidationRuleMax:
			if _, err := strconv.ParseFloat(rule.Params["value"], 64); err != nil {
				out = append(out, fmt.Sprintf("rule %s needs a numeric value", rule.Kind))
			}
		case ValidationRuleMinLength, ValidationRuleMaxLength:
			if n, err := strconv.Atoi(rule.Params["value"]); err != nil || n < 0 {
				out = append(out, fmt.Sprintf("rule %s needs a non-negative integer", rule.Kind))
			}
		case ValidationRulePattern:
			if _, err := regexp.Compile(rule.Params["pattern"]); err != nil {
				out = append(out, fmt.Sprintf("rule pattern does not compile: %v", err))
			}
		default:
			out = append(out, fmt.Sprintf("unknown validation rule %q", rule.Kind))
		}
	}
	return out
}

func sortedFieldIDs(fields map[FieldID]FieldDefinition) []FieldID {
	ids := make([]FieldID, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
