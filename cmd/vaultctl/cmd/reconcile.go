package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/vaultgate/internal/app"
)

func ReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <user-id>",
		Short: "Recompute a user's storage usage from their live files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				drift, err := a.Ledger.Reconcile(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if drift == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "usage already matches live files")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "corrected usage by %d bytes\n", -drift)
				return nil
			})
		},
	}
}
