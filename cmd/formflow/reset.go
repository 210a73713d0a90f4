package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-formflow/pkg/progress"
)

func newResetCommand(a *app) *cobra.Command {
	flags := &formFlags{}

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Discard saved progress for a form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			form, err := resolveForm(ctx, flags.form, flags.operationID, flags.httpTimeout)
			if err != nil {
				return err
			}
			backend, release, err := openBackend(ctx, flags, a.logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := release(); err != nil {
					a.logger.Warn("formflow: closing storage", zap.Error(err))
				}
			}()

			store := progress.New(backend, progress.WithNamespace(form.ID), progress.WithLogger(a.logger.Named("progress")))
			if err := store.Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Cleared saved progress for %s.\n", form.ID)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
