package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/flow"
	"github.com/goliatone/go-formflow/pkg/model"
	"github.com/goliatone/go-formflow/pkg/orchestrator"
	"github.com/goliatone/go-formflow/pkg/progress"
	"github.com/goliatone/go-formflow/pkg/prompt"
	"github.com/goliatone/go-formflow/pkg/remotesync"
	"github.com/goliatone/go-formflow/pkg/summary"
)

type runFlags struct {
	formFlags

	debounce    time.Duration
	syncURL     string
	syncTimeout time.Duration
	strict      bool
	output      string
	template    string
}

func newRunCommand(a *app) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fill in a form interactively",
		Long: `Walk through a form step by step. Answers are saved after every edit, so
quitting (or Ctrl-C) keeps your progress and the next run offers to resume.

Examples:
  # Built-in business audit, progress under the user config dir
  formflow run --form audit

  # Custom form, progress in Redis, partial leads pushed to a server
  formflow run --form ./intake.yaml --redis-addr localhost:6379 \
    --sync-url http://localhost:8080/api/leads`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWizard(cmd.Context(), a, flags)
		},
	}

	flags.formFlags.register(cmd)
	cmd.Flags().DurationVar(&flags.debounce, "debounce", envDuration("DEBOUNCE", progress.DefaultDebounce), "quiet period before progress is written")
	cmd.Flags().StringVar(&flags.syncURL, "sync-url", envOr("SYNC_URL", ""), "lead-capture endpoint for partial answers")
	cmd.Flags().DurationVar(&flags.syncTimeout, "sync-timeout", envDuration("SYNC_TIMEOUT", remotesync.DefaultTimeout), "timeout for each sync request")
	cmd.Flags().BoolVar(&flags.strict, "strict", envBool("STRICT"), "require each step to be complete before moving on")
	cmd.Flags().StringVar(&flags.output, "output", envOr("OUTPUT", "text"), "submission output: text or json")
	cmd.Flags().StringVar(&flags.template, "summary-template", envOr("SUMMARY_TEMPLATE", ""), "pongo2 template for the text summary")
	return cmd
}

func runWizard(ctx context.Context, a *app, flags *runFlags) error {
	if flags.output != "text" && flags.output != "json" {
		return fmt.Errorf("unknown --output %q (want text or json)", flags.output)
	}
	form, err := resolveForm(ctx, flags.form, flags.operationID, flags.httpTimeout)
	if err != nil {
		return err
	}
	complete, err := completionPrinter(a, form, flags)
	if err != nil {
		return err
	}

	backend, release, err := openBackend(ctx, &flags.formFlags, a.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := release(); err != nil {
			a.logger.Warn("formflow: closing storage", zap.Error(err))
		}
	}()

	opts := []orchestrator.Option{
		orchestrator.WithStorage(backend),
		orchestrator.WithDebounce(flags.debounce),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithOnComplete(complete),
	}
	if flags.syncURL != "" {
		opts = append(opts, orchestrator.WithSync(flags.syncURL, remotesync.WithTimeout(flags.syncTimeout)))
	}
	if flags.strict {
		opts = append(opts, orchestrator.WithFlowOptions(flow.WithStrictNavigation()))
	}

	session, err := orchestrator.New(opts...).Open(ctx, orchestrator.Request{Schema: &form})
	if err != nil {
		return err
	}
	// Persist whatever is pending however the run ends; a background context
	// so an interrupt does not cancel the final write.
	defer session.Close(context.WithoutCancel(ctx))

	wizard := prompt.NewWizard(session.Controller, session.Finalizer,
		prompt.WithDriver(a.newDriver(a.out)),
		prompt.WithLogger(a.logger.Named("prompt")),
		prompt.WithSave(session.Store.Flush),
	)
	res, err := wizard.Run(ctx)
	switch {
	case errors.Is(err, prompt.ErrAborted):
		fmt.Fprintln(a.out, "\nStopped. Your answers are saved; run the same form again to resume.")
		return nil
	case err != nil:
		return err
	}
	a.logger.Info("formflow: run finished", zap.String("form", form.ID), zap.String("outcome", string(res.Outcome)))
	return nil
}

func completionPrinter(a *app, form model.FormSchema, flags *runFlags) (flow.CompletionFunc, error) {
	if flags.output == "json" {
		return func(final flow.FinalAnswers) {
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(final); err != nil {
				a.logger.Error("formflow: encode answers", zap.Error(err))
			}
		}, nil
	}

	var opts []summary.Option
	if path := strings.TrimSpace(flags.template); path != "" {
		opts = append(opts, summary.WithTemplateFS(os.DirFS(filepath.Dir(path)), filepath.Base(path)))
	}
	renderer, err := summary.New(opts...)
	if err != nil {
		return nil, err
	}
	return func(final flow.FinalAnswers) {
		fmt.Fprintln(a.out, "\nThanks! Your answers were submitted.")
		if err := renderer.Render(a.out, form, final); err != nil {
			a.logger.Error("formflow: render summary", zap.Error(err))
		}
	}, nil
}
