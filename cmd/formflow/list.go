package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-formflow/schemas"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the built-in forms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range schemas.Names() {
				form, err := schemas.Load(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%-10s %s (%d steps)\n", name, form.Title, form.StepCount())
			}
			return nil
		},
	}
}
