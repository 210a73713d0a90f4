// Package summary renders submitted answers as plain text through a pongo2
// template. The default template ships embedded; callers may supply their
// own, which receives the same context:
//
//	form          {ID, Title}
//	session_id    string
//	record_id     string, empty until a remote record exists
//	submitted_at  time.Time
//	steps         []{ID, Title, Fields []{ID, Label, Value, Choices, Choice}}
//
// Steps without answers are omitted. Output is not HTML-escaped when the
// template wraps itself in {% autoescape off %}, as the default does.
package summary

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-formflow/pkg/flow"
	"github.com/goliatone/go-formflow/pkg/model"
)

//go:embed templates/*.tpl
var defaultTemplates embed.FS

// DefaultTemplate is the embedded template name.
const DefaultTemplate = "summary.tpl"

// Option configures a Renderer.
type Option func(*config)

type config struct {
	files fs.FS
	name  string
	src   string
}

// WithTemplateFS loads the named template from files instead of the embedded
// default. Includes resolve against the same filesystem.
func WithTemplateFS(files fs.FS, name string) Option {
	return func(cfg *config) {
		if files == nil || strings.TrimSpace(name) == "" {
			return
		}
		cfg.files = files
		cfg.name = strings.TrimSpace(name)
		cfg.src = ""
	}
}

// WithTemplateString compiles src as the summary template.
func WithTemplateString(src string) Option {
	return func(cfg *config) {
		if strings.TrimSpace(src) == "" {
			return
		}
		cfg.src = src
		cfg.files = nil
	}
}

// Renderer renders FinalAnswers against a schema.
type Renderer struct {
	tmpl *pongo2.Template
}

// New compiles the configured template.
func New(options ...Option) (*Renderer, error) {
	registerFilters()

	sub, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("summary: embedded templates: %w", err)
	}
	cfg := &config{files: sub, name: DefaultTemplate}
	for _, opt := range options {
		if opt != nil {
			opt(cfg)
		}
	}

	var loader pongo2.TemplateLoader = pongo2.NewFSLoader(sub)
	if cfg.files != nil {
		loader = pongo2.NewFSLoader(cfg.files)
	}
	set := pongo2.NewSet("formflow-summary", loader)
	set.Options.TrimBlocks = true
	set.Options.LStripBlocks = true

	var tmpl *pongo2.Template
	if cfg.src != "" {
		tmpl, err = set.FromString(cfg.src)
	} else {
		tmpl, err = set.FromFile(cfg.name)
	}
	if err != nil {
		return nil, fmt.Errorf("summary: compile template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the summary of final to w.
func (r *Renderer) Render(w io.Writer, schema model.FormSchema, final flow.FinalAnswers) error {
	if r == nil || r.tmpl == nil {
		return errors.New("summary: renderer is nil")
	}
	if err := r.tmpl.ExecuteWriter(buildContext(schema, final), w); err != nil {
		return fmt.Errorf("summary: execute template: %w", err)
	}
	return nil
}

// String renders the summary into a string.
func (r *Renderer) String(schema model.FormSchema, final flow.FinalAnswers) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, schema, final); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type formView struct {
	ID    string
	Title string
}

type stepView struct {
	ID     string
	Title  string
	Fields []fieldView
}

type fieldView struct {
	ID      string
	Label   string
	Value   string
	Choices []string
	Choice  bool
}

func buildContext(schema model.FormSchema, final flow.FinalAnswers) pongo2.Context {
	steps := make([]stepView, 0, len(schema.Steps))
	for i, step := range schema.Steps {
		view := stepView{ID: step.ID, Title: firstNonEmpty(step.Title, humanize(step.ID))}
		for _, field := range schema.StepFields(i) {
			value, ok := final.Answers[field.ID]
			if !ok || value.IsZero() {
				continue
			}
			view.Fields = append(view.Fields, fieldView{
				ID:      string(field.ID),
				Label:   field.DisplayLabel(),
				Value:   value.String(),
				Choices: value.Selected(),
				Choice:  field.Kind.IsChoice(),
			})
		}
		if len(view.Fields) > 0 {
			steps = append(steps, view)
		}
	}

	formID := firstNonEmpty(final.FormID, schema.ID)
	return pongo2.Context{
		"form":         formView{ID: formID, Title: firstNonEmpty(schema.Title, formID)},
		"session_id":   final.SessionID,
		"record_id":    final.RecordID,
		"submitted_at": final.SubmittedAt,
		"steps":        steps,
	}
}

var filtersOnce sync.Once

func registerFilters() {
	filtersOnce.Do(func() {
		if pongo2.FilterExists("humanize") {
			return
		}
		_ = pongo2.RegisterFilter("humanize", func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
			return pongo2.AsValue(humanize(in.String())), nil
		})
	})
}

// humanize turns option and step ids like "small_team" into "small team".
func humanize(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' }), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
