package testsupport

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// TwoStepSchema is the canonical name/age form: step 0 asks for a required
// text name, step 1 for a required numeric age.
func TwoStepSchema() model.FormSchema {
	return model.FormSchema{
		ID:    "intake",
		Title: "Intake",
		Steps: []model.StepDefinition{
			{ID: "who", Title: "Who are you", Fields: []model.FieldID{"name"}},
			{ID: "age", Title: "How old", Fields: []model.FieldID{"age"}},
		},
		Fields: map[model.FieldID]model.FieldDefinition{
			"name": {ID: "name", Kind: model.FieldKindText, Required: true, Label: "Name"},
			"age":  {ID: "age", Kind: model.FieldKindNumber, Required: true, Label: "Age"},
		},
	}
}

// LeadSchema adds contact fields and a sync policy to a three step form.
func LeadSchema() model.FormSchema {
	return model.FormSchema{
		ID: "lead",
		Steps: []model.StepDefinition{
			{ID: "contact", Fields: []model.FieldID{"name", "email", "phone"}},
			{ID: "business", Fields: []model.FieldID{"stage", "channels"}},
			{ID: "notes", Fields: []model.FieldID{"notes"}},
		},
		Fields: map[model.FieldID]model.FieldDefinition{
			"name":     {ID: "name", Kind: model.FieldKindText, Required: true},
			"email":    {ID: "email", Kind: model.FieldKindText},
			"phone":    {ID: "phone", Kind: model.FieldKindText},
			"stage":    {ID: "stage", Kind: model.FieldKindSingleChoice, Required: true, Options: []string{"idea", "launch", "growth"}},
			"channels": {ID: "channels", Kind: model.FieldKindMultiChoice, Required: true, Options: []string{"email", "social", "events"}},
			"notes":    {ID: "notes", Kind: model.FieldKindText},
		},
		Sync: &model.SyncPolicy{
			Required: []model.FieldID{"name"},
			AnyOf:    []model.FieldID{"email", "phone"},
		},
	}
}

// ObservedLogger returns a logger whose entries can be inspected.
func ObservedLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}
