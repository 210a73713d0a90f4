// Package formflow runs resumable multi-step forms: answers are validated per
// step, progress is persisted on a debounce, partial leads can be synced to a
// remote endpoint, and submission is gated on completeness.
//
// Most callers start with Open or OpenEmbedded and drive the returned
// Session's Controller; pkg/prompt runs one interactively in a terminal.
package formflow

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/goliatone/go-formflow/pkg/flow"
	"github.com/goliatone/go-formflow/pkg/orchestrator"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/schemas"
)

// Session aliases orchestrator.Session for callers of the root package.
type Session = orchestrator.Session

// FinalAnswers is the payload handed to completion callbacks.
type FinalAnswers = flow.FinalAnswers

// NewOrchestrator exposes the orchestrator constructor from the top-level
// module.
func NewOrchestrator(options ...orchestrator.Option) *orchestrator.Orchestrator {
	return orchestrator.New(options...)
}

// NewLoader constructs a schema loader.
func NewLoader(options ...schema.LoaderOption) *schema.Loader {
	return schema.NewLoader(options...)
}

// Open loads the schema at source and opens a session for it.
func Open(ctx context.Context, source schema.Source, options ...orchestrator.Option) (*Session, error) {
	return orchestrator.New(options...).Open(ctx, orchestrator.Request{Source: source})
}

// OpenEmbedded opens a session for one of the bundled forms (see
// EmbeddedSchemaNames).
func OpenEmbedded(ctx context.Context, name string, options ...orchestrator.Option) (*Session, error) {
	form, err := schemas.Load(name)
	if err != nil {
		return nil, fmt.Errorf("formflow: %w", err)
	}
	return orchestrator.New(options...).Open(ctx, orchestrator.Request{Schema: &form})
}

// EmbeddedSchemas exposes the bundled form definitions so callers can copy or
// extend them.
func EmbeddedSchemas() fs.FS {
	return schemas.FS()
}

// EmbeddedSchemaNames lists the bundled forms by name.
func EmbeddedSchemaNames() []string {
	return schemas.Names()
}
