package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/templui/vaultgate/cmd/vaultctl/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "vaultctl",
		Short:         "Operator tools for vaultgate",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.SweepCmd())
	rootCmd.AddCommand(cmd.SecurityCmd())
	rootCmd.AddCommand(cmd.ReconcileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
