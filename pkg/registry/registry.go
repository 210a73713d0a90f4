// Package registry answers "is this field satisfied" and "is this step
// complete" for a validated FormSchema. Everything here is a pure function of
// the schema and the answers passed in.
package registry

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-formflow/pkg/condition"
	"github.com/goliatone/go-formflow/pkg/model"
)

// FieldRef locates a field inside the schema.
type FieldRef struct {
	Step  int           `json:"step"`
	Field model.FieldID `json:"field"`
	Label string        `json:"label,omitempty"`
}

// Registry wraps a validated schema with compiled visibility conditions and
// validation patterns.
type Registry struct {
	schema     model.FormSchema
	conditions map[model.FieldID]*condition.Expr
	patterns   map[model.FieldID]*regexp.Regexp
}

// New validates schema and compiles its conditions. The schema is not copied
// deeply; callers must treat it as immutable afterwards.
func New(schema model.FormSchema) (*Registry, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		schema:     schema,
		conditions: make(map[model.FieldID]*condition.Expr),
		patterns:   make(map[model.FieldID]*regexp.Regexp),
	}

	var issues []model.SchemaIssue
	for id, field := range schema.Fields {
		if strings.TrimSpace(field.VisibleWhen) != "" {
			expr, err := condition.Compile(field.VisibleWhen)
			if err != nil {
				issues = append(issues, model.SchemaIssue{Field: id, Message: err.Error()})
			} else {
				for _, ref := range expr.Fields() {
					if _, ok := schema.Fields[ref]; !ok {
						issues = append(issues, model.SchemaIssue{Field: id, Message: fmt.Sprintf("visibleWhen references undefined field %q", ref)})
					}
					if ref == id {
						issues = append(issues, model.SchemaIssue{Field: id, Message: "visibleWhen references the field itself"})
					}
				}
				r.conditions[id] = expr
			}
		}
		if rule, ok := field.Rule(model.ValidationRulePattern); ok {
			// Validate already proved the pattern compiles.
			r.patterns[id] = regexp.MustCompile(rule.Params["pattern"])
		}
	}
	if len(issues) > 0 {
		return nil, &model.SchemaError{Issues: issues}
	}
	return r, nil
}

// MustNew is New for fixtures; it panics on an invalid schema.
func MustNew(schema model.FormSchema) *Registry {
	r, err := New(schema)
	if err != nil {
		panic(err)
	}
	return r
}

// Schema returns the wrapped schema.
func (r *Registry) Schema() model.FormSchema {
	return r.schema
}

// StepCount returns the number of steps.
func (r *Registry) StepCount() int {
	return r.schema.StepCount()
}

// Field looks up a field definition.
func (r *Registry) Field(id model.FieldID) (model.FieldDefinition, bool) {
	return r.schema.Field(id)
}

// IsVisible reports whether the field is shown given the current answers.
// Fields without a VisibleWhen condition are always visible.
func (r *Registry) IsVisible(id model.FieldID, answers model.Answers) bool {
	expr, ok := r.conditions[id]
	if !ok {
		return true
	}
	return expr.Eval(answers)
}

// VisibleFields returns the step's fields that are currently shown.
func (r *Registry) VisibleFields(step int, answers model.Answers) []model.FieldDefinition {
	all := r.schema.StepFields(step)
	out := all[:0:0]
	for _, field := range all {
		if r.IsVisible(field.ID, answers) {
			out = append(out, field)
		}
	}
	return out
}

// IsFieldSatisfied reports whether value meets the field's kind and
// validation rules. It ignores required-ness except for multi choice fields,
// where an empty selection satisfies an optional field.
func (r *Registry) IsFieldSatisfied(field model.FieldDefinition, value model.Value) bool {
	return r.Check(field, value) == nil
}

// Check is IsFieldSatisfied with a reason for the failure.
func (r *Registry) Check(field model.FieldDefinition, value model.Value) error {
	switch field.Kind {
	case model.FieldKindText:
		if value.IsMulti() {
			return errKind
		}
		text := strings.TrimSpace(value.String())
		if text == "" {
			return errEmpty
		}
		return r.checkText(field, text)
	case model.FieldKindNumber:
		if value.IsMulti() {
			return errKind
		}
		raw := strings.TrimSpace(value.String())
		if raw == "" {
			return errEmpty
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return errNotNumber
		}
		return checkNumber(field, n)
	case model.FieldKindSingleChoice:
		if value.IsMulti() {
			return errKind
		}
		if value.IsZero() {
			return errEmpty
		}
		if !field.HasOption(value.String()) {
			return errUnknownOption
		}
		return nil
	case model.FieldKindMultiChoice:
		if !value.IsMulti() && !value.IsZero() {
			return errKind
		}
		selected := value.Selected()
		if len(selected) == 0 {
			if field.Required {
				return errEmpty
			}
			return nil
		}
		for _, option := range selected {
			if !field.HasOption(option) {
				return errUnknownOption
			}
		}
		return nil
	default:
		return errKind
	}
}

func (r *Registry) checkText(field model.FieldDefinition, text string) error {
	length := utf8.RuneCountInString(text)
	if rule, ok := field.Rule(model.ValidationRuleMinLength); ok {
		if min, _ := strconv.Atoi(rule.Params["value"]); length < min {
			return fmt.Errorf("%w: at least %d characters", errRule, min)
		}
	}
	if rule, ok := field.Rule(model.ValidationRuleMaxLength); ok {
		if max, _ := strconv.Atoi(rule.Params["value"]); length > max {
			return fmt.Errorf("%w: at most %d characters", errRule, max)
		}
	}
	if pattern, ok := r.patterns[field.ID]; ok && !pattern.MatchString(text) {
		return fmt.Errorf("%w: does not match %s", errRule, pattern.String())
	}
	return nil
}

func checkNumber(field model.FieldDefinition, n float64) error {
	if rule, ok := field.Rule(model.ValidationRuleMin); ok {
		if min, _ := strconv.ParseFloat(rule.Params["value"], 64); n < min {
			return fmt.Errorf("%w: must be >= %s", errRule, rule.Params["value"])
		}
	}
	if rule, ok := field.Rule(model.ValidationRuleMax); ok {
		if max, _ := strconv.ParseFloat(rule.Params["value"], 64); n > max {
			return fmt.Errorf("%w: must be <= %s", errRule, rule.Params["value"])
		}
	}
	return nil
}

// IsStepComplete reports whether every required, visible field of the step
// is satisfied. Out of range indices are never complete.
func (r *Registry) IsStepComplete(step int, answers model.Answers) bool {
	if step < 0 || step >= r.schema.StepCount() {
		return false
	}
	return len(r.MissingFields(step, answers)) == 0
}

// MissingFields lists required, visible fields of the step that are not yet
// satisfied, in declaration order.
func (r *Registry) MissingFields(step int, answers model.Answers) []FieldRef {
	var out []FieldRef
	for _, field := range r.schema.StepFields(step) {
		if !field.Required || !r.IsVisible(field.ID, answers) {
			continue
		}
		if r.IsFieldSatisfied(field, answers.Get(field.ID)) {
			continue
		}
		out = append(out, FieldRef{Step: step, Field: field.ID, Label: field.DisplayLabel()})
	}
	return out
}

// IsFormComplete reports whether every step is complete.
func (r *Registry) IsFormComplete(answers model.Answers) bool {
	_, incomplete := r.FirstIncompleteStep(answers)
	return !incomplete
}

// FirstIncompleteStep returns the lowest step index with a missing field.
func (r *Registry) FirstIncompleteStep(answers model.Answers) (int, bool) {
	for i := range r.schema.Steps {
		if !r.IsStepComplete(i, answers) {
			return i, true
		}
	}
	return -1, false
}

// AllMissing lists missing fields across every step.
func (r *Registry) AllMissing(answers model.Answers) []FieldRef {
	var out []FieldRef
	for i := range r.schema.Steps {
		out = append(out, r.MissingFields(i, answers)...)
	}
	return out
}

// Progress returns the share of required visible fields that are satisfied,
// in [0, 1]. Forms without required fields report 1.
func (r *Registry) Progress(answers model.Answers) float64 {
	total, done := 0, 0
	for i := range r.schema.Steps {
		for _, field := range r.schema.StepFields(i) {
			if !field.Required || !r.IsVisible(field.ID, answers) {
				continue
			}
			total++
			if r.IsFieldSatisfied(field, answers.Get(field.ID)) {
				done++
			}
		}
	}
	if total == 0 {
		return 1
	}
	return float64(done) / float64(total)
}

// VisibleAnswers drops answers for unknown or hidden fields.
func (r *Registry) VisibleAnswers(answers model.Answers) model.Answers {
	out := make(model.Answers, len(answers))
	for id, value := range answers {
		if _, ok := r.schema.Fields[id]; !ok {
			continue
		}
		if !r.IsVisible(id, answers) {
			continue
		}
		out[id] = value
	}
	return out.Clone()
}
