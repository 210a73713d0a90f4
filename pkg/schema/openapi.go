package schema

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formflow/pkg/model"
)

const (
	// ExtensionSteps on an operation (or the document root) lists the steps:
	// [{id, title, description, fields: [...]}]. Listed fields set the order.
	ExtensionSteps = "x-formflow-steps"
	// ExtensionStep on a property names the step it belongs to.
	ExtensionStep = "x-formflow-step"
	// ExtensionVisibleWhen on a property carries its visibility condition.
	ExtensionVisibleWhen = "x-formflow-visible-when"
	// ExtensionSync on an operation carries the sync policy
	// ({required: [...], anyOf: [...]}).
	ExtensionSync = "x-formflow-sync"

	defaultStepID = "main"
)

// FromOpenAPI derives a form from the JSON request body of an OpenAPI 3
// operation. Properties map to fields: enums become single choice, arrays of
// enums multi choice, numbers and integers number, anything else text.
func FromOpenAPI(ctx context.Context, data []byte, operationID string) (model.FormSchema, error) {
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return model.FormSchema{}, fmt.Errorf("schema: load openapi: %w", err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return model.FormSchema{}, fmt.Errorf("schema: validate openapi: %w", err)
	}

	op, err := findOperation(doc, operationID)
	if err != nil {
		return model.FormSchema{}, err
	}
	body := requestSchema(op)
	if body == nil {
		return model.FormSchema{}, fmt.Errorf("schema: operation %q has no request body schema", op.OperationID)
	}

	id := op.OperationID
	if id == "" {
		id = defaultStepID
	}
	schema := model.FormSchema{
		ID:          id,
		Title:       firstNonEmpty(op.Summary, body.Title),
		Description: firstNonEmpty(op.Description, body.Description),
		Fields:      make(map[model.FieldID]model.FieldDefinition),
	}
	if doc.Info != nil {
		schema.Version = doc.Info.Version
	}
	schema.Sync = syncPolicy(op.Extensions[ExtensionSync])

	declared := declaredSteps(op.Extensions[ExtensionSteps])
	if declared == nil {
		declared = declaredSteps(doc.Extensions[ExtensionSteps])
	}
	stepIndex := make(map[string]int, len(declared))
	for i, step := range declared {
		stepIndex[step.ID] = i
	}

	names := make([]string, 0, len(body.Properties))
	for name := range body.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	placed := make(map[model.FieldID]bool)
	for _, step := range declared {
		for _, id := range step.Fields {
			placed[id] = true
		}
	}

	var issues []model.SchemaIssue
	for _, name := range names {
		ref := body.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		id := model.FieldID(name)
		field := fieldFromSchema(id, ref.Value, slices.Contains(body.Required, name))
		schema.Fields[id] = field

		if placed[id] {
			continue
		}
		stepID, _ := ref.Value.Extensions[ExtensionStep].(string)
		if stepID == "" {
			stepID = defaultStepID
		}
		idx, ok := stepIndex[stepID]
		if !ok {
			if len(declared) > 0 && stepID != defaultStepID {
				issues = append(issues, model.SchemaIssue{Step: stepID, Field: id, Message: "x-formflow-step names an undeclared step"})
				continue
			}
			declared = append(declared, model.StepDefinition{ID: stepID, Title: titleCase(stepID)})
			idx = len(declared) - 1
			stepIndex[stepID] = idx
		}
		declared[idx].Fields = append(declared[idx].Fields, id)
	}
	schema.Steps = declared

	if len(issues) > 0 {
		return model.FormSchema{}, &model.SchemaError{Issues: issues}
	}
	if err := schema.Validate(); err != nil {
		return model.FormSchema{}, err
	}
	return schema, nil
}

func findOperation(doc *openapi3.T, operationID string) (*openapi3.Operation, error) {
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, errors.New("schema: openapi document has no paths")
	}
	var candidates []*openapi3.Operation
	for _, path := range doc.Paths.InMatchingOrder() {
		item := doc.Paths.Value(path)
		if item == nil {
			continue
		}
		for _, op := range item.Operations() {
			if operationID != "" && op.OperationID == operationID {
				return op, nil
			}
			if operationID == "" && requestSchema(op) != nil {
				candidates = append(candidates, op)
			}
		}
	}
	if operationID != "" {
		return nil, fmt.Errorf("schema: operation %q not found", operationID)
	}
	switch len(candidates) {
	case 0:
		return nil, errors.New("schema: no operation with a request body")
	case 1:
		return candidates[0], nil
	default:
		return nil, errors.New("schema: several operations have request bodies; pick one by operation id")
	}
}

func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op == nil || op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"} {
		if mt := content.Get(mediaType); mt != nil && mt.Schema != nil && mt.Schema.Value != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

func fieldFromSchema(id model.FieldID, s *openapi3.Schema, required bool) model.FieldDefinition {
	field := model.FieldDefinition{
		ID:       id,
		Kind:     model.FieldKindText,
		Required: required,
		Label:    s.Title,
		Help:     s.Description,
	}
	if placeholder, ok := s.Example.(string); ok {
		field.Placeholder = placeholder
	}
	if cond, ok := s.Extensions[ExtensionVisibleWhen].(string); ok {
		field.VisibleWhen = cond
	}

	switch {
	case s.Type.Is(openapi3.TypeArray) && s.Items != nil && s.Items.Value != nil && len(s.Items.Value.Enum) > 0:
		field.Kind = model.FieldKindMultiChoice
		field.Options = enumStrings(s.Items.Value.Enum)
	case len(s.Enum) > 0:
		field.Kind = model.FieldKindSingleChoice
		field.Options = enumStrings(s.Enum)
	case s.Type.Is(openapi3.TypeNumber) || s.Type.Is(openapi3.TypeInteger):
		field.Kind = model.FieldKindNumber
	}

	if s.Min != nil {
		field.Validations = append(field.Validations, valueRule(model.ValidationRuleMin, strconv.FormatFloat(*s.Min, 'f', -1, 64)))
	}
	if s.Max != nil {
		field.Validations = append(field.Validations, valueRule(model.ValidationRuleMax, strconv.FormatFloat(*s.Max, 'f', -1, 64)))
	}
	if field.Kind == model.FieldKindText {
		if s.MinLength > 0 {
			field.Validations = append(field.Validations, valueRule(model.ValidationRuleMinLength, strconv.FormatUint(s.MinLength, 10)))
		}
		if s.MaxLength != nil {
			field.Validations = append(field.Validations, valueRule(model.ValidationRuleMaxLength, strconv.FormatUint(*s.MaxLength, 10)))
		}
		if s.Pattern != "" {
			field.Validations = append(field.Validations, model.ValidationRule{
				Kind:   model.ValidationRulePattern,
				Params: map[string]string{"pattern": s.Pattern},
			})
		}
	}
	return field
}

func enumStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

func declaredSteps(raw any) []model.StepDefinition {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	steps := make([]model.StepDefinition, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		step := model.StepDefinition{
			ID:          stringValue(entry["id"]),
			Title:       stringValue(entry["title"]),
			Description: stringValue(entry["description"]),
		}
		for _, id := range stringList(entry["fields"]) {
			step.Fields = append(step.Fields, model.FieldID(id))
		}
		if step.Title == "" {
			step.Title = titleCase(step.ID)
		}
		steps = append(steps, step)
	}
	return steps
}

func syncPolicy(raw any) *model.SyncPolicy {
	entry, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	policy := &model.SyncPolicy{}
	for _, id := range stringList(entry["required"]) {
		policy.Required = append(policy.Required, model.FieldID(id))
	}
	for _, id := range stringList(entry["anyOf"]) {
		policy.AnyOf = append(policy.AnyOf, model.FieldID(id))
	}
	return policy
}

func stringValue(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := stringValue(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func titleCase(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
