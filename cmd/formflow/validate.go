package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/registry"
	"github.com/goliatone/go-formflow/pkg/schema"
	"github.com/goliatone/go-formflow/schemas"
)

type validateFlags struct {
	operationID string
}

func newValidateCommand(a *app) *cobra.Command {
	flags := &validateFlags{}

	cmd := &cobra.Command{
		Use:   "validate [form...]",
		Short: "Check form definitions",
		Long: `Load each form and report schema problems: unknown fields in steps,
duplicate field placement, bad validation rules and broken visibleWhen
conditions. OpenAPI documents are also linted for misplaced or malformed
x-formflow-* extensions.

With no arguments every built-in form is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := args
			if len(refs) == 0 {
				refs = schemas.Names()
			}
			failed := 0
			for _, ref := range refs {
				if !validateForm(cmd.Context(), a, ref, flags.operationID) {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d forms failed validation", failed, len(refs))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.operationID, "operation", envOr("OPERATION", ""), "OpenAPI operation id to build the form from")
	return cmd
}

func validateForm(ctx context.Context, a *app, ref, operationID string) bool {
	ok := true
	if !schemas.Has(ref) {
		violations, err := lintSource(ctx, ref)
		if err != nil {
			fmt.Fprintf(a.errOut, "%s: %v\n", ref, err)
			return false
		}
		for _, v := range violations {
			fmt.Fprintf(a.errOut, "%s: %s\n", ref, v)
			ok = false
		}
	}

	form, err := resolveForm(ctx, ref, operationID, schema.DefaultRequestTimeout)
	if err == nil {
		_, err = registry.New(form)
	}
	if err != nil {
		var schemaErr *model.SchemaError
		if errors.As(err, &schemaErr) {
			for _, issue := range schemaErr.Issues {
				fmt.Fprintf(a.errOut, "%s: %s\n", ref, issue)
			}
		} else {
			fmt.Fprintf(a.errOut, "%s: %v\n", ref, err)
		}
		return false
	}

	if ok {
		fmt.Fprintf(a.out, "%s: ok (%s, %d steps, %d fields)\n", ref, form.ID, form.StepCount(), len(form.Fields))
	}
	return ok
}

// lintSource runs the extension linter when ref is an OpenAPI document.
func lintSource(ctx context.Context, ref string) ([]schema.Violation, error) {
	src, err := schema.ParseSource(ref)
	if err != nil {
		return nil, err
	}
	doc, err := schema.NewLoader(schema.WithHTTP(schema.DefaultRequestTimeout)).Load(ctx, src)
	if err != nil {
		return nil, err
	}
	if !doc.IsOpenAPI() {
		return nil, nil
	}
	return schema.LintOpenAPI(ctx, doc.Raw())
}
