package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/templui/vaultgate/internal/app"
)

func SecurityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "security",
		Short: "Print the 24h security report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				report, err := a.SecurityService.Report(cmd.Context())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			})
		},
	}
}
