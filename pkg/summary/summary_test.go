package summary

import (
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-formflow/pkg/flow"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/testsupport"
)

func leadFinal() flow.FinalAnswers {
	return flow.FinalAnswers{
		SessionID: "01HXSESSION",
		FormID:    "lead",
		RecordID:  "lead-42",
		Answers: model.Answers{
			"name":     model.Text("Ada & co"),
			"stage":    model.Text("growth"),
			"channels": model.Choices("email", "events"),
		},
		SubmittedAt: time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC),
	}
}

func TestRender_DefaultTemplate(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	schema := testsupport.LeadSchema()
	schema.Steps[1].Title = "About the business"
	out, err := r.String(schema, leadFinal())
	require.NoError(t, err)

	assert.Contains(t, out, "lead\n")
	assert.Contains(t, out, "Submitted: 2026-03-04 09:30 UTC")
	assert.Contains(t, out, "Record:    lead-42")
	assert.Contains(t, out, "  - name: Ada & co\n")
	assert.Contains(t, out, "About the business\n")
	assert.Contains(t, out, "  - channels: email, events\n")
	assert.NotContains(t, out, "&amp;")
	assert.NotContains(t, out, "notes", "steps without answers are skipped")
	assert.Less(t, strings.Index(out, "contact"), strings.Index(out, "About the business"))
}

func TestRender_DefaultTemplateLayout(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	schema := testsupport.LeadSchema()
	schema.Steps[1].Title = "About the business"
	out, err := r.String(schema, leadFinal())
	require.NoError(t, err)

	want := "lead\n" +
		"Submitted: 2026-03-04 09:30 UTC\n" +
		"Session:   01HXSESSION\n" +
		"Record:    lead-42\n" +
		"\n" +
		"contact\n" +
		"  - name: Ada & co\n" +
		"\n" +
		"About the business\n" +
		"  - stage: growth\n" +
		"  - channels: email, events\n"
	assert.Equal(t, want, out)
}

func TestRender_OmitsRecordWhenAbsent(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	final := leadFinal()
	final.RecordID = ""
	out, err := r.String(testsupport.LeadSchema(), final)
	require.NoError(t, err)
	assert.NotContains(t, out, "Record:")
}

func TestRender_HumanizesChoiceValues(t *testing.T) {
	r, err := New(WithTemplateString(`{% for step in steps %}{% for field in step.Fields %}{{ field.ID }}={{ field.Value|humanize }};{% endfor %}{% endfor %}`))
	require.NoError(t, err)

	schema := testsupport.LeadSchema()
	final := leadFinal()
	final.Answers = model.Answers{"stage": model.Text("early_growth")}
	schema.Fields["stage"] = model.FieldDefinition{ID: "stage", Kind: model.FieldKindSingleChoice, Required: true, Options: []string{"early_growth"}}

	out, err := r.String(schema, final)
	require.NoError(t, err)
	assert.Equal(t, "stage=early growth;", out)
}

func TestRender_TemplateFromFS(t *testing.T) {
	files := fstest.MapFS{
		"custom.tpl": {Data: []byte(`{{ form.Title }}|{{ session_id }}|{{ steps|length }}`)},
	}
	r, err := New(WithTemplateFS(files, "custom.tpl"))
	require.NoError(t, err)

	schema := testsupport.TwoStepSchema()
	out, err := r.String(schema, flow.FinalAnswers{
		SessionID: "s-1",
		Answers:   model.Answers{"name": model.Text("Ada")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Intake|s-1|1", out)
}

func TestNew_RejectsBrokenTemplate(t *testing.T) {
	_, err := New(WithTemplateString(`{% for x in %}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summary: compile template")

	_, err = New(WithTemplateFS(fstest.MapFS{}, "missing.tpl"))
	require.Error(t, err)
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "small team", humanize("small_team"))
	assert.Equal(t, "pre seed", humanize("pre-seed"))
	assert.Equal(t, "", humanize(""))
}
