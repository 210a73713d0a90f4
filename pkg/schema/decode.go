package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formflow/pkg/model"
)

type documentSchema struct {
	ID          string            `json:"id" yaml:"id"`
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description" yaml:"description"`
	Version     string            `json:"version" yaml:"version"`
	Sync        *model.SyncPolicy `json:"sync" yaml:"sync"`
	Steps       []documentStep    `json:"steps" yaml:"steps"`
}

type documentStep struct {
	ID          string          `json:"id" yaml:"id"`
	Title       string          `json:"title" yaml:"title"`
	Description string          `json:"description" yaml:"description"`
	Fields      []documentField `json:"fields" yaml:"fields"`
}

type documentField struct {
	ID          model.FieldID          `json:"id" yaml:"id"`
	Kind        model.FieldKind        `json:"kind" yaml:"kind"`
	Required    bool                   `json:"required" yaml:"required"`
	Label       string                 `json:"label" yaml:"label"`
	Help        string                 `json:"help" yaml:"help"`
	Placeholder string                 `json:"placeholder" yaml:"placeholder"`
	Options     []string               `json:"options" yaml:"options"`
	Validations []model.ValidationRule `json:"validations" yaml:"validations"`
	VisibleWhen string                 `json:"visibleWhen" yaml:"visibleWhen"`
	Metadata    map[string]string      `json:"metadata" yaml:"metadata"`

	Min       *float64 `json:"min" yaml:"min"`
	Max       *float64 `json:"max" yaml:"max"`
	MinLength *int     `json:"minLength" yaml:"minLength"`
	MaxLength *int     `json:"maxLength" yaml:"maxLength"`
	Pattern   string   `json:"pattern" yaml:"pattern"`
}

// Decode parses a schema document and validates the result. Unknown keys are
// rejected so typos surface at load time.
func Decode(data []byte, format Format) (model.FormSchema, error) {
	if format == FormatUnknown {
		format = sniffFormat(data)
	}

	var doc documentSchema
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return model.FormSchema{}, fmt.Errorf("schema: decode json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return model.FormSchema{}, fmt.Errorf("schema: decode yaml: %w", err)
		}
	default:
		return model.FormSchema{}, fmt.Errorf("schema: unsupported format %q", format)
	}
	return doc.build()
}

// build converts the inline document into a FormSchema. A field declared twice
// keeps its first definition; Validate reports the second membership.
func (d documentSchema) build() (model.FormSchema, error) {
	schema := model.FormSchema{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Version:     d.Version,
		Sync:        d.Sync,
		Fields:      make(map[model.FieldID]model.FieldDefinition),
	}
	for _, step := range d.Steps {
		def := model.StepDefinition{ID: step.ID, Title: step.Title, Description: step.Description}
		for _, field := range step.Fields {
			def.Fields = append(def.Fields, field.ID)
			if _, dup := schema.Fields[field.ID]; !dup {
				schema.Fields[field.ID] = field.definition()
			}
		}
		schema.Steps = append(schema.Steps, def)
	}
	if err := schema.Validate(); err != nil {
		return model.FormSchema{}, err
	}
	return schema, nil
}

func (f documentField) definition() model.FieldDefinition {
	def := model.FieldDefinition{
		ID:          f.ID,
		Kind:        f.Kind,
		Required:    f.Required,
		Label:       f.Label,
		Help:        f.Help,
		Placeholder: f.Placeholder,
		Options:     f.Options,
		Validations: append([]model.ValidationRule(nil), f.Validations...),
		VisibleWhen: f.VisibleWhen,
		Metadata:    f.Metadata,
	}
	if f.Min != nil {
		def.Validations = append(def.Validations, valueRule(model.ValidationRuleMin, strconv.FormatFloat(*f.Min, 'f', -1, 64)))
	}
	if f.Max != nil {
		def.Validations = append(def.Validations, valueRule(model.ValidationRuleMax, strconv.FormatFloat(*f.Max, 'f', -1, 64)))
	}
	if f.MinLength != nil {
		def.Validations = append(def.Validations, valueRule(model.ValidationRuleMinLength, strconv.Itoa(*f.MinLength)))
	}
	if f.MaxLength != nil {
		def.Validations = append(def.Validations, valueRule(model.ValidationRuleMaxLength, strconv.Itoa(*f.MaxLength)))
	}
	if f.Pattern != "" {
		def.Validations = append(def.Validations, model.ValidationRule{
			Kind:   model.ValidationRulePattern,
			Params: map[string]string{"pattern": f.Pattern},
		})
	}
	return def
}

func valueRule(kind, value string) model.ValidationRule {
	return model.ValidationRule{Kind: kind, Params: map[string]string{"value": value}}
}
