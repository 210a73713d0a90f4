package schema

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formflow/pkg/model"
)

const leadsAPI = `
openapi: 3.0.3
info:
  title: Leads
  version: 1.4.0
paths:
  /leads:
    post:
      operationId: createLead
      summary: Capture a lead
      x-formflow-sync:
        required: [name]
        anyOf: [email]
      x-formflow-steps:
        - id: contact
          title: Contact
          fields: [name, email]
        - id: business
      requestBody:
        required: true
        content:
          application/json:
            schema:
              type: object
              required: [name, stage]
              properties:
                name:
                  type: string
                  title: Your name
                  maxLength: 80
                email:
                  type: string
                  pattern: '^[^@]+@[^@]+$'
                stage:
                  type: string
                  enum: [idea, growth]
                  x-formflow-step: business
                channels:
                  type: array
                  items:
                    type: string
                    enum: [email, social]
                  x-formflow-step: business
                  x-formflow-visible-when: stage == "growth"
                revenue:
                  type: number
                  minimum: 0
                  x-formflow-step: business
      responses:
        "201":
          description: created
  /health:
    get:
      operationId: health
      responses:
        "200":
          description: ok
`

func TestFromOpenAPI(t *testing.T) {
	got, err := FromOpenAPI(context.Background(), []byte(leadsAPI), "createLead")
	if err != nil {
		t.Fatalf("from openapi: %v", err)
	}

	want := model.FormSchema{
		ID:      "createLead",
		Title:   "Capture a lead",
		Version: "1.4.0",
		Sync:    &model.SyncPolicy{Required: []model.FieldID{"name"}, AnyOf: []model.FieldID{"email"}},
		Steps: []model.StepDefinition{
			{ID: "contact", Title: "Contact", Fields: []model.FieldID{"name", "email"}},
			{ID: "business", Title: "Business", Fields: []model.FieldID{"channels", "revenue", "stage"}},
		},
		Fields: map[model.FieldID]model.FieldDefinition{
			"name": {ID: "name", Kind: model.FieldKindText, Required: true, Label: "Your name",
				Validations: []model.ValidationRule{{Kind: model.ValidationRuleMaxLength, Params: map[string]string{"value": "80"}}}},
			"email": {ID: "email", Kind: model.FieldKindText,
				Validations: []model.ValidationRule{{Kind: model.ValidationRulePattern, Params: map[string]string{"pattern": "^[^@]+@[^@]+$"}}}},
			"stage": {ID: "stage", Kind: model.FieldKindSingleChoice, Required: true, Options: []string{"idea", "growth"}},
			"channels": {ID: "channels", Kind: model.FieldKindMultiChoice, Options: []string{"email", "social"},
				VisibleWhen: `stage == "growth"`},
			"revenue": {ID: "revenue", Kind: model.FieldKindNumber,
				Validations: []model.ValidationRule{{Kind: model.ValidationRuleMin, Params: map[string]string{"value": "0"}}}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestFromOpenAPI_PicksOnlyBodyOperation(t *testing.T) {
	got, err := FromOpenAPI(context.Background(), []byte(leadsAPI), "")
	if err != nil {
		t.Fatalf("from openapi: %v", err)
	}
	if got.ID != "createLead" {
		t.Fatalf("expected createLead, got %q", got.ID)
	}
}

func TestFromOpenAPI_Errors(t *testing.T) {
	ctx := context.Background()
	if _, err := FromOpenAPI(ctx, []byte(leadsAPI), "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := FromOpenAPI(ctx, []byte(leadsAPI), "health"); err == nil || !strings.Contains(err.Error(), "no request body") {
		t.Fatalf("expected missing body error, got %v", err)
	}

	undeclared := strings.Replace(leadsAPI, "x-formflow-step: business\n                  x-formflow-visible-when", "x-formflow-step: billing\n                  x-formflow-visible-when", 1)
	_, err := FromOpenAPI(ctx, []byte(undeclared), "createLead")
	if !errors.Is(err, model.ErrInvalidSchema) || !strings.Contains(err.Error(), "undeclared step") {
		t.Fatalf("expected undeclared step issue, got %v", err)
	}
}

func TestLoader_DetectsOpenAPI(t *testing.T) {
	doc, err := NewDocument(FSSource("api.yaml"), FormatUnknown, []byte(leadsAPI))
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	if !doc.IsOpenAPI() || doc.Format() != FormatYAML {
		t.Fatalf("expected YAML OpenAPI document")
	}
}
